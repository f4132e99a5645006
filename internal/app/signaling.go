package app

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	reasonSelfCall    = "Cannot call yourself."
	reasonNotFriends  = "Not friends."
	reasonInCall      = "Already in a call."
	reasonUnavailable = "Service unavailable."
)

// CallRequest handles CALL_REQUEST from c to callee. The caller's endpoint is
// recorded before any check.
func (r *Registry) CallRequest(ctx context.Context, c *core.Client, to domain.Identity, port uint16) {
	from := c.Identity
	r.UpdateAddress(from, c.Conn.RemoteAddr(), port)

	if from == to {
		r.Reply(ctx, c, protocol.CallResponse(protocol.RespError, to, reasonSelfCall))
		return
	}
	ok, err := core.IsFriend(ctx, r.friends, from, to)
	if err != nil {
		log.Error().Err(err).Str("module", "app.signaling").Str("identity", string(from)).
			Msg("friend lookup failed")
		r.Reply(ctx, c, protocol.CallResponse(protocol.RespError, to, reasonUnavailable))
		return
	}
	if !ok {
		r.Reply(ctx, c, protocol.CallResponse(protocol.RespError, to, reasonNotFriends))
		return
	}

	r.mu.Lock()
	if !r.ownsLocked(from, c.Conn) {
		r.mu.Unlock()
		return
	}
	now := r.now()
	sess, busy := r.calls[from]
	switch {
	case busy && !(sess.Caller == from && sess.Callee == to):
		r.mu.Unlock()
		r.Reply(ctx, c, protocol.CallResponse(protocol.RespError, to, reasonInCall))
		return
	case busy:
		// Retry of the same request: only valid while still ringing.
		if err := sess.Apply(domain.EventRequest, now); err != nil {
			r.mu.Unlock()
			r.Reply(ctx, c, protocol.CallResponse(protocol.RespError, to, reasonInCall))
			return
		}
	default:
		if _, online := r.conns[to]; !online {
			r.mu.Unlock()
			r.Reply(ctx, c, protocol.CallResponse(protocol.RespOffline, to, ""))
			return
		}
		if _, ok := r.calls[to]; ok {
			r.mu.Unlock()
			r.Reply(ctx, c, protocol.CallResponse(protocol.RespBusy, to, ""))
			return
		}
		sess = domain.NewCallSession(from, to, now)
		r.calls[from] = sess
		r.calls[to] = sess
	}
	callee, online := r.conns[to]
	if !online {
		r.dropSessionLocked(sess)
		r.mu.Unlock()
		r.Reply(ctx, c, protocol.CallResponse(protocol.RespOffline, to, ""))
		return
	}
	calleeConn := callee.conn
	incoming := protocol.CallIncoming(from, r.addrs[from].AddrPort())
	r.mu.Unlock()

	if err := calleeConn.TrySend(incoming); err != nil {
		r.mu.Lock()
		r.dropSessionLocked(sess)
		r.mu.Unlock()
		r.sendFailed(ctx, to, calleeConn, err)
		r.Reply(ctx, c, protocol.CallResponse(protocol.RespOffline, to, ""))
		return
	}
	log.Info().Str("module", "app.signaling").Str("caller", string(from)).Str("callee", string(to)).
		Msg("call ringing")
	r.Reply(ctx, c, protocol.CallResponse(protocol.RespSending, to, ""))
}

// CallAccept handles CALL_ACCEPT from the callee c back to caller.
func (r *Registry) CallAccept(ctx context.Context, c *core.Client, caller domain.Identity, port uint16) {
	callee := c.Identity
	r.UpdateAddress(callee, c.Conn.RemoteAddr(), port)

	r.mu.Lock()
	if !r.ownsLocked(callee, c.Conn) {
		r.mu.Unlock()
		return
	}
	sess, ok := r.calls[callee]
	if !ok || sess.Caller != caller || sess.Callee != callee {
		r.mu.Unlock()
		r.Reply(ctx, c, protocol.Error("No pending call from "+string(caller)+"."))
		return
	}
	if err := sess.Apply(domain.EventAccept, r.now()); err != nil {
		r.mu.Unlock()
		r.Reply(ctx, c, protocol.Error("No pending call from "+string(caller)+"."))
		return
	}
	e, online := r.conns[caller]
	accepted := protocol.CallAccepted(callee, r.addrs[callee].AddrPort())
	r.mu.Unlock()

	log.Info().Str("module", "app.signaling").Str("caller", string(caller)).Str("callee", string(callee)).
		Msg("call active")
	if !online {
		return
	}
	if err := e.conn.TrySend(accepted); err != nil {
		r.sendFailed(ctx, caller, e.conn, err)
	}
}

// CallReject removes any session between the pair and tells the other party.
func (r *Registry) CallReject(ctx context.Context, c *core.Client, to domain.Identity) {
	r.hangUp(ctx, c, to, domain.EventReject, protocol.CallRejected(c.Identity))
}

// CallEnd removes any session between the pair and tells the other party.
func (r *Registry) CallEnd(ctx context.Context, c *core.Client, to domain.Identity) {
	r.hangUp(ctx, c, to, domain.EventEnd, protocol.CallEnded(c.Identity))
}

func (r *Registry) hangUp(ctx context.Context, c *core.Client, to domain.Identity, ev domain.CallEvent, f core.Frame) {
	from := c.Identity

	r.mu.Lock()
	if !r.ownsLocked(from, c.Conn) {
		r.mu.Unlock()
		return
	}
	var out []core.Delivery
	if sess, ok := r.calls[from]; ok && sess.Involves(from, to) {
		_ = sess.Apply(ev, r.now())
		r.dropSessionLocked(sess)
	}
	if e, ok := r.conns[to]; ok {
		out = append(out, core.Delivery{To: to, Conn: e.conn, Frame: f})
	}
	r.mu.Unlock()

	log.Info().Str("module", "app.signaling").Str("from", string(from)).Str("to", string(to)).
		Str("event", ev.String()).Msg("call closed")
	r.deliver(ctx, out)
}

// endCallLocked removes id's session and returns f addressed to the partner
// if the partner is connected.
func (r *Registry) endCallLocked(id domain.Identity, f core.Frame) []core.Delivery {
	sess, ok := r.calls[id]
	if !ok {
		return nil
	}
	_ = sess.Apply(domain.EventDisconnect, r.now())
	r.dropSessionLocked(sess)
	partner := sess.Partner(id)
	if e, ok := r.conns[partner]; ok {
		return []core.Delivery{{To: partner, Conn: e.conn, Frame: f}}
	}
	return nil
}

// dropSessionLocked unindexes sess for both parties, leaving newer sessions
// alone.
func (r *Registry) dropSessionLocked(sess *domain.CallSession) {
	for _, id := range []domain.Identity{sess.Caller, sess.Callee} {
		if r.calls[id] == sess {
			delete(r.calls, id)
		}
	}
}

// CallInfo is a read-only view of one session.
type CallInfo struct {
	Caller     domain.Identity `json:"caller"`
	Callee     domain.Identity `json:"callee"`
	State      string          `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
	AcceptedAt *time.Time      `json:"accepted_at,omitempty"`
}

// Calls lists the current sessions, each once, ordered by caller.
func (r *Registry) Calls() []CallInfo {
	r.mu.Lock()
	out := make([]CallInfo, 0, len(r.calls)/2)
	for id, s := range r.calls {
		if id != s.Caller {
			continue
		}
		ci := CallInfo{Caller: s.Caller, Callee: s.Callee, State: s.State.String(), CreatedAt: s.CreatedAt}
		if !s.AcceptedAt.IsZero() {
			at := s.AcceptedAt
			ci.AcceptedAt = &at
		}
		out = append(out, ci)
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b CallInfo) int { return cmp.Compare(a.Caller, b.Caller) })
	return out
}

// CallOf returns a copy of id's session, if any.
func (r *Registry) CallOf(id domain.Identity) (domain.CallSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.calls[id]; ok {
		return *s, true
	}
	return domain.CallSession{}, false
}
