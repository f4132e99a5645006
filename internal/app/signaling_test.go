package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

type callWorld struct {
	r       *Registry
	conns   map[domain.Identity]*fakeConn
	clients map[domain.Identity]*core.Client
}

// newCallWorld attaches alice, bob and carol, all friends with each other
// except where noted, and clears presence frames.
func newCallWorld(t *testing.T, extra ...domain.Identity) *callWorld {
	t.Helper()
	friends := newFakeFriends(
		[2]domain.Identity{"alice", "bob"},
		[2]domain.Identity{"carol", "bob"},
		[2]domain.Identity{"carol", "alice"},
	)
	w := &callWorld{
		r:       newTestRegistry(friends),
		conns:   map[domain.Identity]*fakeConn{},
		clients: map[domain.Identity]*core.Client{},
	}
	ids := append([]domain.Identity{"alice", "bob", "carol"}, extra...)
	for i, id := range ids {
		w.conns[id] = newFakeConn(string(id), "198.51.100."+string(rune('1'+i)))
		w.clients[id] = attach(w.r, id, w.conns[id])
	}
	for _, c := range w.conns {
		c.Reset()
	}
	return w
}

func (w *callWorld) request(from, to domain.Identity, port uint16) {
	w.r.CallRequest(context.Background(), w.clients[from], to, port)
}

func (w *callWorld) accept(from, to domain.Identity, port uint16) {
	w.r.CallAccept(context.Background(), w.clients[from], to, port)
}

func TestCallRequestToOfflineCreatesNoSession(t *testing.T) {
	w := newCallWorld(t)
	w.r.Disconnect(context.Background(), "bob", w.conns["bob"])
	w.conns["alice"].Reset()

	w.request("alice", "bob", 5004)

	assert.Equal(t, []string{"CALL_RESPONSE|OFFLINE|bob"}, w.conns["alice"].Frames())
	_, ok := w.r.CallOf("alice")
	assert.False(t, ok)
	assert.Empty(t, w.r.Calls())

	e, ok := w.r.Address("alice")
	require.True(t, ok, "caller endpoint is recorded before checks")
	assert.Equal(t, uint16(5004), e.Port)
}

func TestCallRequestRingsCalleeBeforeConfirmingCaller(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)

	assert.Equal(t, []string{"CALL_INCOMING|alice|198.51.100.1|5004"}, w.conns["bob"].Frames())
	assert.Equal(t, []string{"CALL_RESPONSE|SENDING|bob"}, w.conns["alice"].Frames())

	s, ok := w.r.CallOf("bob")
	require.True(t, ok)
	assert.Equal(t, domain.CallRinging, s.State)
	assert.Equal(t, domain.Identity("alice"), s.Caller)
}

func TestCallRequestBusyCallee(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.request("carol", "bob", 6000)

	assert.Equal(t, []string{"CALL_RESPONSE|BUSY|bob"}, w.conns["carol"].Frames())
	_, ok := w.r.CallOf("carol")
	assert.False(t, ok)
}

func TestCallRequestRejections(t *testing.T) {
	w := newCallWorld(t, "dave")

	w.request("alice", "alice", 5004)
	assert.Equal(t, "CALL_RESPONSE|ERROR|alice|Cannot call yourself.", w.conns["alice"].Last())

	w.request("alice", "dave", 5004)
	assert.Equal(t, "CALL_RESPONSE|ERROR|dave|Not friends.", w.conns["alice"].Last())
	assert.Empty(t, w.conns["dave"].Frames())

	w.request("alice", "bob", 5004)
	w.request("alice", "carol", 5004)
	assert.Equal(t, "CALL_RESPONSE|ERROR|carol|Already in a call.", w.conns["alice"].Last())
	assert.Empty(t, w.conns["carol"].Frames())
}

func TestDuplicateRequestWhileRingingResends(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.request("alice", "bob", 5006)

	assert.Equal(t, []string{
		"CALL_INCOMING|alice|198.51.100.1|5004",
		"CALL_INCOMING|alice|198.51.100.1|5006",
	}, w.conns["bob"].Frames())
	assert.Equal(t, []string{"CALL_RESPONSE|SENDING|bob", "CALL_RESPONSE|SENDING|bob"}, w.conns["alice"].Frames())
	assert.Len(t, w.r.Calls(), 1)
}

func TestRequestAfterActiveIsRejected(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.accept("bob", "alice", 6000)
	w.request("alice", "bob", 5004)
	assert.Equal(t, "CALL_RESPONSE|ERROR|bob|Already in a call.", w.conns["alice"].Last())

	s, _ := w.r.CallOf("alice")
	assert.Equal(t, domain.CallActive, s.State)
}

func TestCallAcceptActivatesAndSendsObservedAddress(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.conns["alice"].Reset()

	w.accept("bob", "alice", 6000)

	assert.Equal(t, []string{"CALL_ACCEPTED|bob|198.51.100.2|6000"}, w.conns["alice"].Frames())
	s, ok := w.r.CallOf("alice")
	require.True(t, ok)
	assert.Equal(t, domain.CallActive, s.State)
	assert.Equal(t, testNow, s.AcceptedAt)

	calls := w.r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ACTIVE", calls[0].State)
	require.NotNil(t, calls[0].AcceptedAt)
}

func TestCallAcceptWithoutRinging(t *testing.T) {
	w := newCallWorld(t)
	w.accept("bob", "alice", 6000)
	assert.Equal(t, []string{"ERROR|No pending call from alice."}, w.conns["bob"].Frames())
	assert.Empty(t, w.conns["alice"].Frames())

	// The caller cannot accept its own call.
	w.request("alice", "bob", 5004)
	w.accept("alice", "bob", 5004)
	assert.Equal(t, "ERROR|No pending call from bob.", w.conns["alice"].Last())
	s, _ := w.r.CallOf("alice")
	assert.Equal(t, domain.CallRinging, s.State)
}

func TestCallRejectAndEnd(t *testing.T) {
	w := newCallWorld(t)
	ctx := context.Background()

	w.request("alice", "bob", 5004)
	w.r.CallReject(ctx, w.clients["bob"], "alice")
	assert.Equal(t, "CALL_REJECTED|bob", w.conns["alice"].Last())
	assert.Empty(t, w.r.Calls())

	w.request("alice", "bob", 5004)
	w.accept("bob", "alice", 6000)
	w.r.CallEnd(ctx, w.clients["alice"], "bob")
	assert.Equal(t, "CALL_ENDED|alice", w.conns["bob"].Last())
	_, ok := w.r.CallOf("bob")
	assert.False(t, ok)
}

func TestCallEndLeavesUnrelatedSession(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.r.CallEnd(context.Background(), w.clients["carol"], "bob")

	assert.Equal(t, "CALL_ENDED|carol", w.conns["bob"].Last())
	s, ok := w.r.CallOf("bob")
	require.True(t, ok)
	assert.Equal(t, domain.Identity("alice"), s.Caller)
}

func TestDisconnectDuringActiveCallEndsIt(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.accept("bob", "alice", 6000)
	w.conns["bob"].Reset()

	w.r.Disconnect(context.Background(), "alice", w.conns["alice"])

	assert.Contains(t, w.conns["bob"].Frames(), "CALL_ENDED|alice")
	assert.Contains(t, w.conns["bob"].Frames(), "FRIEND_OFFLINE|alice")
	_, ok := w.r.CallOf("alice")
	assert.False(t, ok)
	_, ok = w.r.CallOf("bob")
	assert.False(t, ok)
}

func TestSupersedeEndsCall(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.accept("bob", "alice", 6000)
	w.conns["bob"].Reset()

	attach(w.r, "alice", newFakeConn("a2", "198.51.100.9"))

	assert.Equal(t, "CALL_ENDED|alice", w.conns["bob"].Frames()[0])
	assert.Empty(t, w.r.Calls())
}

func TestCalleeSendFailureAbortsAndReportsOffline(t *testing.T) {
	w := newCallWorld(t)
	w.conns["bob"].FailWith(errors.New("queue full"))

	w.request("alice", "bob", 5004)

	assert.Contains(t, w.conns["alice"].Frames(), "CALL_RESPONSE|OFFLINE|bob")
	assert.NotContains(t, w.conns["alice"].Frames(), "CALL_ENDED|bob")
	assert.False(t, w.r.IsOnline("bob"))
	assert.True(t, w.conns["bob"].Closed())
	assert.Empty(t, w.r.Calls())
}

func TestCallerSendFailureOnAcceptCascades(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.conns["alice"].FailWith(errors.New("queue full"))

	w.accept("bob", "alice", 6000)

	assert.False(t, w.r.IsOnline("alice"))
	assert.Contains(t, w.conns["bob"].Frames(), "CALL_ENDED|alice")
	assert.Empty(t, w.r.Calls())
}

func TestSupersededClientCannotSignal(t *testing.T) {
	w := newCallWorld(t)
	stale := w.clients["alice"]
	attach(w.r, "alice", newFakeConn("a2", "198.51.100.9"))
	w.conns["bob"].Reset()

	w.r.CallRequest(context.Background(), stale, "bob", 5004)
	assert.Empty(t, w.conns["bob"].Frames())
	assert.Empty(t, w.r.Calls())
}

func TestReleaseEndsCallWithoutPresence(t *testing.T) {
	w := newCallWorld(t)
	w.request("alice", "bob", 5004)
	w.accept("bob", "alice", 6000)
	w.conns["bob"].Reset()

	assert.False(t, w.r.Release(context.Background(), "alice", newFakeConn("stale", "10.9.9.9")))
	assert.True(t, w.r.Release(context.Background(), "alice", w.conns["alice"]))
	assert.False(t, w.r.IsOnline("alice"))

	assert.Equal(t, []string{"CALL_ENDED|alice"}, w.conns["bob"].Frames())
	assert.Empty(t, w.conns["carol"].Frames())
	_, ok := w.r.CallOf("bob")
	assert.False(t, ok)
}
