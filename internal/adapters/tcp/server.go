// Package tcp serves the control protocol over plain TCP connections.
package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSendQueue    = 64
	DefaultWriteTimeout = 5 * time.Second
	readChunk           = 4096
)

type Server struct {
	Handler      core.FrameHandler
	SendQueue    int
	MaxFrame     int
	WriteTimeout time.Duration

	wg sync.WaitGroup
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for every
// connection worker to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Info().Str("module", "adapters.tcp").Str("addr", ln.Addr().String()).Msg("control listener started")
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Str("module", "adapters.tcp").Msg("control listener stopped")
				return nil
			}
			log.Error().Err(err).Str("module", "adapters.tcp").Msg("accept")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, nc)
		}()
	}
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	queue := s.SendQueue
	if queue <= 0 {
		queue = DefaultSendQueue
	}
	timeout := s.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	conn := newConn(nc, queue)
	client := core.NewClient(conn)
	logger := log.With().Str("module", "adapters.tcp").Str("conn", conn.id).
		Str("remote", nc.RemoteAddr().String()).Logger()
	logger.Info().Msg("new control connection")

	done := make(chan struct{})
	go func() {
		conn.writePump(timeout)
		close(done)
	}()
	stop := context.AfterFunc(ctx, conn.Close)

	s.readPump(ctx, conn, client)

	stop()
	s.Handler.OnDisconnect(ctx, client)
	conn.Close()
	<-done
	logger.Info().Str("identity", string(client.Identity)).Msg("control connection closed")
}

func (s *Server) readPump(ctx context.Context, conn *Conn, client *core.Client) {
	lines := protocol.NewLineBuffer(s.MaxFrame)
	buf := make([]byte, readChunk)
	for {
		n, err := conn.nc.Read(buf)
		if n > 0 {
			dropped := lines.Dropped()
			for _, line := range lines.Feed(buf[:n]) {
				if !s.Handler.OnFrame(ctx, client, line) {
					return
				}
			}
			if lines.Dropped() > dropped {
				log.Warn().Err(protocol.ErrLineTooLong).Str("module", "adapters.tcp").
					Str("conn", conn.id).Msg("discarded oversized frame")
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Str("module", "adapters.tcp").Str("conn", conn.id).Msg("readPump read error")
			}
			return
		}
	}
}
