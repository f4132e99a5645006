package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrNoIncomingCall    = errors.New("no incoming call")
	ErrCallBusy          = errors.New("call already active")
)

// CallState is the signaling state of a call between two identities.
// CallIdle means no session exists.
type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "IDLE"
	case CallRinging:
		return "RINGING"
	case CallActive:
		return "ACTIVE"
	default:
		return fmt.Sprintf("CallState(%d)", int(s))
	}
}

type CallEvent int

const (
	EventRequest CallEvent = iota + 1
	EventAccept
	EventReject
	EventEnd
	EventDisconnect
)

func (e CallEvent) String() string {
	switch e {
	case EventRequest:
		return "REQUEST"
	case EventAccept:
		return "ACCEPT"
	case EventReject:
		return "REJECT"
	case EventEnd:
		return "END"
	case EventDisconnect:
		return "DISCONNECT"
	default:
		return fmt.Sprintf("CallEvent(%d)", int(e))
	}
}

type transitionKey struct {
	from  CallState
	event CallEvent
}

// transitions lists every permitted (state, event) pair. Anything missing is
// rejected by Transition. A REQUEST while RINGING is the idempotent resend of
// the same pair; the coordinator checks the pair before consulting the table.
var transitions = map[transitionKey]CallState{
	{CallIdle, EventRequest}:    CallRinging,
	{CallRinging, EventRequest}: CallRinging,
	{CallRinging, EventAccept}:  CallActive,

	{CallIdle, EventReject}:    CallIdle,
	{CallRinging, EventReject}: CallIdle,
	{CallActive, EventReject}:  CallIdle,

	{CallIdle, EventEnd}:    CallIdle,
	{CallRinging, EventEnd}: CallIdle,
	{CallActive, EventEnd}:  CallIdle,

	{CallIdle, EventDisconnect}:    CallIdle,
	{CallRinging, EventDisconnect}: CallIdle,
	{CallActive, EventDisconnect}:  CallIdle,
}

// Transition returns the state reached from s on ev.
func Transition(s CallState, ev CallEvent) (CallState, error) {
	if next, ok := transitions[transitionKey{s, ev}]; ok {
		return next, nil
	}
	switch {
	case ev == EventAccept && s == CallIdle:
		return s, ErrNoIncomingCall
	case ev == EventRequest && s == CallActive:
		return s, ErrCallBusy
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}

// CallSession is one call negotiation between Caller and Callee. The same
// pointer is indexed under both identities.
type CallSession struct {
	Caller     Identity
	Callee     Identity
	State      CallState
	CreatedAt  time.Time
	AcceptedAt time.Time
}

func NewCallSession(caller, callee Identity, now time.Time) *CallSession {
	return &CallSession{Caller: caller, Callee: callee, State: CallRinging, CreatedAt: now}
}

// Partner returns the other party, or "" if id is not a party.
func (c *CallSession) Partner(id Identity) Identity {
	switch id {
	case c.Caller:
		return c.Callee
	case c.Callee:
		return c.Caller
	default:
		return ""
	}
}

// Involves reports whether the session is between a and b in either direction.
func (c *CallSession) Involves(a, b Identity) bool {
	return (c.Caller == a && c.Callee == b) || (c.Caller == b && c.Callee == a)
}

// Apply moves the session along ev.
func (c *CallSession) Apply(ev CallEvent, now time.Time) error {
	next, err := Transition(c.State, ev)
	if err != nil {
		return err
	}
	if next == CallActive && c.State != CallActive {
		c.AcceptedAt = now
	}
	c.State = next
	return nil
}
