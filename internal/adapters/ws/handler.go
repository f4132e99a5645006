// Package ws serves the control protocol over WebSocket text messages. A
// message may carry several newline-separated lines; a message without a
// trailing newline still ends its last line.
package ws

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultReadLimit    = 64 << 10
	DefaultPingPeriod   = 54 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultSendQueue    = 64
)

type Handler struct {
	Frames       core.FrameHandler
	SendQueue    int
	MaxFrame     int
	ReadLimit    int64
	PingPeriod   time.Duration
	WriteTimeout time.Duration
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleControl upgrades the request and serves the connection until it
// closes or ctx is done.
func (h *Handler) HandleControl(ctx context.Context, c *gin.Context) {
	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}
	h.serve(ctx, wsConn, remoteAddr(c.Request))
}

func (h *Handler) serve(ctx context.Context, wsConn *websocket.Conn, remote netip.Addr) {
	readLimit := h.ReadLimit
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	ping := h.PingPeriod
	if ping <= 0 {
		ping = DefaultPingPeriod
	}
	timeout := h.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	queue := h.SendQueue
	if queue <= 0 {
		queue = DefaultSendQueue
	}

	conn := newConn(wsConn, remote, queue)
	client := core.NewClient(conn)
	logger := log.With().Str("module", "adapters.ws").Str("conn", conn.id).Str("remote", remote.String()).Logger()
	logger.Info().Msg("new WS control connection")

	pongWait := ping * 10 / 9
	wsConn.SetReadLimit(readLimit)
	_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		conn.writePump(timeout, ping)
		close(done)
	}()
	stop := context.AfterFunc(ctx, conn.Close)

	h.readPump(ctx, conn, client)

	stop()
	h.Frames.OnDisconnect(ctx, client)
	conn.Close()
	<-done
	logger.Info().Str("identity", string(client.Identity)).Msg("WS control connection closed")
}

func (h *Handler) readPump(ctx context.Context, conn *Conn, client *core.Client) {
	lines := protocol.NewLineBuffer(h.MaxFrame)
	for {
		mt, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "adapters.ws").Str("conn", conn.id).Msg("readPump read error")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		dropped := lines.Dropped()
		for _, line := range lines.Feed(data) {
			if !h.Frames.OnFrame(ctx, client, line) {
				return
			}
		}
		if lines.Dropped() > dropped {
			log.Warn().Err(protocol.ErrLineTooLong).Str("module", "adapters.ws").Str("conn", conn.id).
				Msg("discarded oversized frame")
		}
	}
}

func remoteAddr(r *http.Request) netip.Addr {
	ap, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}
	}
	return ap.Addr().Unmap()
}
