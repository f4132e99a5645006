package ws

import (
	"bytes"
	"net/netip"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is a control channel over a WebSocket. Each outgoing frame is one
// text message without its trailing newline.
type Conn struct {
	id     string
	ws     *websocket.Conn
	remote netip.Addr
	send   chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn, remote netip.Addr, queue int) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		ws:     ws,
		remote: remote,
		send:   make(chan core.Frame, queue),
	}
}

func (c *Conn) ID() string             { return c.id }
func (c *Conn) RemoteAddr() netip.Addr { return c.remote }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close stops accepting frames; the write pump flushes what is queued, sends
// a close message and closes the socket.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Conn) writePump(writeTimeout, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Str("conn", c.id).Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(data, []byte{'\n'})); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", c.id).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", c.id).Msg("writePump ping error")
				return
			}
		}
	}
}
