package app

import (
	"context"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// deliver sends frames collected under the lock. It must be called with the
// lock released.
func (r *Registry) deliver(ctx context.Context, out []core.Delivery) core.PublishResult {
	var res core.PublishResult
	for _, d := range out {
		if err := d.Conn.TrySend(d.Frame); err != nil {
			res.Dropped = append(res.Dropped, d)
			r.sendFailed(ctx, d.To, d.Conn, err)
			continue
		}
		res.SendTo++
	}
	return res
}

func (r *Registry) sendFailed(ctx context.Context, id domain.Identity, conn core.SignalConnection, err error) {
	action := r.policy.OnSendFailure(id, err)
	log.Warn().Err(err).Str("module", "app.deliver").Str("identity", string(id)).
		Str("conn", conn.ID()).Int("action", int(action)).Msg("send failed")
	if action == EvictChannel {
		r.evict(ctx, id, conn)
	}
}

// Send delivers one frame to the registered channel of to.
func (r *Registry) Send(ctx context.Context, to domain.Identity, f core.Frame) error {
	conn, ok := r.Lookup(to)
	if !ok {
		return ErrOffline
	}
	if err := conn.TrySend(f); err != nil {
		r.sendFailed(ctx, to, conn, err)
		return err
	}
	return nil
}

// Reply sends f back on the client's own channel.
func (r *Registry) Reply(ctx context.Context, c *core.Client, f core.Frame) {
	err := c.Send(f)
	if err == nil {
		return
	}
	if !c.LoggedIn() {
		log.Warn().Err(err).Str("module", "app.deliver").Str("conn", c.Conn.ID()).
			Msg("reply to anonymous client failed")
		c.Conn.Close()
		return
	}
	r.sendFailed(ctx, c.Identity, c.Conn, err)
}

// Publish fans f out to every connected identity in to except skip.
func (r *Registry) Publish(ctx context.Context, to []domain.Identity, f core.Frame, skip domain.Identity) core.PublishResult {
	r.mu.Lock()
	out := make([]core.Delivery, 0, len(to))
	for _, id := range to {
		if id == skip {
			continue
		}
		if e, ok := r.conns[id]; ok {
			out = append(out, core.Delivery{To: id, Conn: e.conn, Frame: f})
		}
	}
	r.mu.Unlock()
	return r.deliver(ctx, out)
}
