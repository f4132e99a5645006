package app

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

type fakeConn struct {
	id   string
	addr netip.Addr

	mu     sync.Mutex
	frames []string
	fail   error
	closed bool
}

func newFakeConn(id, addr string) *fakeConn {
	return &fakeConn{id: id, addr: netip.MustParseAddr(addr)}
}

func (f *fakeConn) ID() string             { return f.id }
func (f *fakeConn) RemoteAddr() netip.Addr { return f.addr }

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnClosed
	}
	if f.fail != nil {
		return f.fail
	}
	f.frames = append(f.frames, strings.TrimSuffix(string(fr), "\n"))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func (f *fakeConn) Last() string {
	fr := f.Frames()
	if len(fr) == 0 {
		return ""
	}
	return fr[len(fr)-1]
}

func (f *fakeConn) Reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) FailWith(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

type fakeFriends struct {
	mu    sync.Mutex
	pairs map[domain.Identity][]domain.Identity
	err   error
}

func newFakeFriends(pairs ...[2]domain.Identity) *fakeFriends {
	f := &fakeFriends{pairs: make(map[domain.Identity][]domain.Identity)}
	for _, p := range pairs {
		_ = f.AddFriend(context.Background(), p[0], p[1])
	}
	return f
}

func (f *fakeFriends) Friends(_ context.Context, id domain.Identity) ([]domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Identity(nil), f.pairs[id]...), nil
}

func (f *fakeFriends) AddFriend(_ context.Context, a, b domain.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[a] = append(f.pairs[a], b)
	f.pairs[b] = append(f.pairs[b], a)
	return nil
}

func (f *fakeFriends) RemoveFriend(context.Context, domain.Identity, domain.Identity) (bool, error) {
	return false, nil
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(friends core.Friendships) *Registry {
	r := NewRegistry(friends, nil)
	r.now = func() time.Time { return testNow }
	return r
}

// attach logs id in on conn.
func attach(r *Registry, id domain.Identity, conn *fakeConn) *core.Client {
	c := core.NewClient(conn)
	c.Identity = id
	r.Attach(context.Background(), c)
	return c
}
