package core

import "github.com/dkeye/Rendezvous/internal/domain"

// Client is the per-connection state owned by one control worker. Only that
// worker touches it, so it needs no locking.
type Client struct {
	Conn     SignalConnection
	Identity domain.Identity
}

func NewClient(conn SignalConnection) *Client {
	return &Client{Conn: conn}
}

func (c *Client) LoggedIn() bool { return c.Identity != "" }

func (c *Client) Send(f Frame) error { return c.Conn.TrySend(f) }
