// Package media forwards call audio datagrams between the two parties of an
// ACTIVE call. Payloads are opaque; only the header is read.
package media

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultBufferBytes = 64 << 10

// Router resolves the destination of a datagram; *app.Registry implements it.
type Router interface {
	Route(sender, receiver domain.Identity, src netip.AddrPort, opt app.RouteOptions) (netip.AddrPort, error)
}

type Options struct {
	BufferBytes int
	app.RouteOptions
}

// Stats are monotonically increasing counters.
type Stats struct {
	Received  uint64 `json:"received"`
	Forwarded uint64 `json:"forwarded"`
	Dropped   uint64 `json:"dropped"`
}

type Relay struct {
	conn   *net.UDPConn
	router Router
	opts   Options

	received  atomic.Uint64
	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

func NewRelay(conn *net.UDPConn, router Router, opts Options) *Relay {
	if opts.BufferBytes <= 0 {
		opts.BufferBytes = DefaultBufferBytes
	}
	return &Relay{conn: conn, router: router, opts: opts}
}

// Listen binds addr and returns a relay on it.
func Listen(addr string, router Router, opts Options) (*Relay, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, err
	}
	return NewRelay(conn, router, opts), nil
}

func (r *Relay) LocalAddr() net.Addr { return r.conn.LocalAddr() }

func (r *Relay) Stats() Stats {
	return Stats{
		Received:  r.received.Load(),
		Forwarded: r.forwarded.Load(),
		Dropped:   r.dropped.Load(),
	}
}

// Run reads datagrams until ctx is done or the socket is closed. It owns the
// socket and closes it on return.
func (r *Relay) Run(ctx context.Context) error {
	logger := log.With().Str("module", "media.relay").Str("addr", r.conn.LocalAddr().String()).Logger()
	logger.Info().Msg("relay loop started")

	stop := context.AfterFunc(ctx, func() { _ = r.conn.Close() })
	defer stop()
	defer r.conn.Close()

	buf := make([]byte, r.opts.BufferBytes)
	for {
		n, src, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info().Msg("relay loop stopped")
				return nil
			}
			logger.Error().Err(err).Msg("relay read error")
			continue
		}
		r.received.Add(1)
		r.forward(buf[:n], src, &logger)
	}
}

func (r *Relay) forward(data []byte, src netip.AddrPort, logger *zerolog.Logger) {
	h, ok := protocol.ParseMediaFrame(data)
	if !ok {
		r.drop(logger, src, "malformed header", nil)
		return
	}
	dst, err := r.router.Route(h.Sender, h.Receiver, src, r.opts.RouteOptions)
	if err != nil {
		r.drop(logger, src, "no route", err)
		return
	}
	if _, err := r.conn.WriteToUDPAddrPort(data, dst); err != nil {
		r.drop(logger, src, "write failed", err)
		return
	}
	r.forwarded.Add(1)
}

func (r *Relay) drop(logger *zerolog.Logger, src netip.AddrPort, why string, err error) {
	r.dropped.Add(1)
	logger.Trace().Err(err).Str("src", src.String()).Msg(why)
}
