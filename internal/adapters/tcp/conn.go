package tcp

import (
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Conn is a line-framed control channel over one TCP connection.
type Conn struct {
	id     string
	nc     net.Conn
	remote netip.Addr
	send   chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newConn(nc net.Conn, queue int) *Conn {
	var remote netip.Addr
	if ap, err := netip.ParseAddrPort(nc.RemoteAddr().String()); err == nil {
		remote = ap.Addr().Unmap()
	}
	return &Conn{
		id:     uuid.NewString(),
		nc:     nc,
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

// Close stops accepting frames. Frames already queued are still flushed by
// the write pump, which then closes the socket.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Conn) writePump(writeTimeout time.Duration) {
	defer c.nc.Close()
	for data := range c.send {
		if err := c.nc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			log.Error().Err(err).Str("module", "adapters.tcp").Str("conn", c.id).Msg("writePump set deadline")
			break
		}
		if _, err := c.nc.Write(data); err != nil {
			log.Warn().Err(err).Str("module", "adapters.tcp").Str("conn", c.id).Msg("writePump write error")
			break
		}
	}
	c.Close()
}
