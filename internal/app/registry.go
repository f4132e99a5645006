package app

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrOffline = errors.New("identity not connected")

const supersededReason = "Another client logged in with your account."

type connEntry struct {
	conn  core.SignalConnection
	since time.Time
}

// Registry owns the connection registry, the address book and the call
// table. One mutex guards all three; it is never held across a send.
type Registry struct {
	mu    sync.Mutex
	conns map[domain.Identity]*connEntry
	addrs map[domain.Identity]domain.AddressEntry
	calls map[domain.Identity]*domain.CallSession

	friends core.Friendships
	policy  Policy
	now     func() time.Time
}

func NewRegistry(friends core.Friendships, policy Policy) *Registry {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Registry{
		conns:   make(map[domain.Identity]*connEntry),
		addrs:   make(map[domain.Identity]domain.AddressEntry),
		calls:   make(map[domain.Identity]*domain.CallSession),
		friends: friends,
		policy:  policy,
		now:     time.Now,
	}
}

// Attach registers c's connection as the only channel for c.Identity.
// A previous channel is force-logged-out and closed, and any call it was in
// is ended first.
func (r *Registry) Attach(ctx context.Context, c *core.Client) {
	id := c.Identity

	r.mu.Lock()
	var out []core.Delivery
	old := r.conns[id]
	if old != nil && old.conn.ID() == c.Conn.ID() {
		old = nil
	}
	if old != nil {
		out = r.endCallLocked(id, protocol.CallEnded(id))
	}
	r.conns[id] = &connEntry{conn: c.Conn, since: r.now()}
	r.mu.Unlock()

	if old != nil {
		_ = old.conn.TrySend(protocol.ForceLogout(supersededReason))
		old.conn.Close()
		log.Info().Str("module", "app.registry").Str("identity", string(id)).
			Str("conn", old.conn.ID()).Msg("superseded channel")
	}
	log.Info().Str("module", "app.registry").Str("identity", string(id)).
		Str("conn", c.Conn.ID()).Msg("attached")

	r.deliver(ctx, out)
	r.NotifyPresence(ctx, id, true)
}

// Detach removes id only if conn is still its registered channel.
func (r *Registry) Detach(id domain.Identity, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detachLocked(id, conn)
}

func (r *Registry) detachLocked(id domain.Identity, conn core.SignalConnection) bool {
	e, ok := r.conns[id]
	if !ok || e.conn.ID() != conn.ID() {
		return false
	}
	delete(r.conns, id)
	return true
}

// Disconnect is called when a channel goes away. If it was still the
// registered one, the identity's call is ended and friends see it offline.
func (r *Registry) Disconnect(ctx context.Context, id domain.Identity, conn core.SignalConnection) {
	if r.Release(ctx, id, conn) {
		r.NotifyPresence(ctx, id, false)
	}
}

// Release detaches conn from id and ends its call without telling friends.
// It reports whether conn was the registered channel.
func (r *Registry) Release(ctx context.Context, id domain.Identity, conn core.SignalConnection) bool {
	r.mu.Lock()
	if !r.detachLocked(id, conn) {
		r.mu.Unlock()
		return false
	}
	out := r.endCallLocked(id, protocol.CallEnded(id))
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("identity", string(id)).
		Str("conn", conn.ID()).Msg("detached")

	r.deliver(ctx, out)
	return true
}

// evict tears down a channel whose send failed.
func (r *Registry) evict(ctx context.Context, id domain.Identity, conn core.SignalConnection) {
	conn.Close()
	r.Disconnect(ctx, id, conn)
}

func (r *Registry) Lookup(id domain.Identity) (core.SignalConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		return e.conn, true
	}
	return nil, false
}

func (r *Registry) IsOnline(id domain.Identity) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Owns reports whether conn is the registered channel of id.
func (r *Registry) Owns(id domain.Identity, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownsLocked(id, conn)
}

func (r *Registry) ownsLocked(id domain.Identity, conn core.SignalConnection) bool {
	e, ok := r.conns[id]
	return ok && e.conn.ID() == conn.ID()
}

type OnlineEntry struct {
	Identity domain.Identity `json:"identity"`
	Since    time.Time       `json:"since"`
}

// Online returns the attached identities sorted by name.
func (r *Registry) Online() []OnlineEntry {
	r.mu.Lock()
	out := make([]OnlineEntry, 0, len(r.conns))
	for id, e := range r.conns {
		out = append(out, OnlineEntry{Identity: id, Since: e.since})
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b OnlineEntry) int { return cmp.Compare(a.Identity, b.Identity) })
	return out
}
