package core

import (
	"context"
	"errors"
	"net/netip"
)

// Frame is one encoded control frame, newline included.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts a control channel transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// ID is unique per connection, so a stale detach can be told apart
	// from a newer attach of the same identity.
	ID() string
	// RemoteAddr is the observed network address of the peer.
	RemoteAddr() netip.Addr
	// TrySend queues f without blocking.
	TrySend(f Frame) error
	Close()
}

// FrameHandler consumes the control lines of one client. Transports call
// OnFrame in order from a single worker per connection and OnDisconnect once
// when that worker exits.
type FrameHandler interface {
	// OnFrame returns false when the connection should be closed.
	OnFrame(ctx context.Context, c *Client, line string) bool
	OnDisconnect(ctx context.Context, c *Client)
}
