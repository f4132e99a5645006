package orch

import (
	"context"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

type fakeConn struct {
	id   string
	addr netip.Addr

	mu     sync.Mutex
	frames []string
	closed bool
}

func (f *fakeConn) ID() string             { return f.id }
func (f *fakeConn) RemoteAddr() netip.Addr { return f.addr }

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnClosed
	}
	f.frames = append(f.frames, strings.TrimSuffix(string(fr), "\n"))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Take returns and clears the recorded frames.
func (f *fakeConn) Take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.frames
	f.frames = nil
	return out
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// memStore implements every store capability in memory.
type memStore struct {
	mu       sync.Mutex
	secrets  map[domain.Identity]string
	friends  map[domain.Identity][]domain.Identity
	groups   []domain.Group
	members  map[domain.GroupID][]domain.Identity
	direct   []domain.Message
	directTo []domain.Identity
	grouped  map[domain.GroupID][]domain.Message
}

func newMemStore() *memStore {
	return &memStore{
		secrets: map[domain.Identity]string{},
		friends: map[domain.Identity][]domain.Identity{},
		members: map[domain.GroupID][]domain.Identity{},
		grouped: map[domain.GroupID][]domain.Message{},
	}
}

func (m *memStore) Register(_ context.Context, id domain.Identity, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[id]; ok {
		return core.ErrIdentityTaken
	}
	m.secrets[id] = secret
	return nil
}

func (m *memStore) Authenticate(_ context.Context, id domain.Identity, secret string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[id]
	return ok && s == secret, nil
}

func (m *memStore) Delete(_ context.Context, id domain.Identity, secret string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.secrets[id]; !ok || s != secret {
		return false, nil
	}
	delete(m.secrets, id)
	for _, f := range m.friends[id] {
		m.friends[f] = slices.DeleteFunc(m.friends[f], func(x domain.Identity) bool { return x == id })
	}
	delete(m.friends, id)
	for gid, members := range m.members {
		m.members[gid] = slices.DeleteFunc(members, func(x domain.Identity) bool { return x == id })
	}
	return true, nil
}

func (m *memStore) Friends(_ context.Context, id domain.Identity) ([]domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.friends[id]), nil
}

func (m *memStore) AddFriend(_ context.Context, a, b domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a == b {
		return core.ErrSelfFriend
	}
	if _, ok := m.secrets[b]; !ok {
		return core.ErrUnknownIdentity
	}
	if slices.Contains(m.friends[a], b) {
		return core.ErrAlreadyFriends
	}
	m.friends[a] = append(m.friends[a], b)
	m.friends[b] = append(m.friends[b], a)
	return nil
}

func (m *memStore) RemoveFriend(_ context.Context, a, b domain.Identity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.friends[a], b)
	if i < 0 {
		return false, nil
	}
	m.friends[a] = slices.Delete(m.friends[a], i, i+1)
	if j := slices.Index(m.friends[b], a); j >= 0 {
		m.friends[b] = slices.Delete(m.friends[b], j, j+1)
	}
	return true, nil
}

func (m *memStore) CreateGroup(_ context.Context, name string) (domain.GroupID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Name == name {
			return g.ID, core.ErrGroupExists
		}
	}
	gid := domain.GroupID(strconv.Itoa(len(m.groups) + 1))
	m.groups = append(m.groups, domain.Group{ID: gid, Name: name})
	m.members[gid] = nil
	return gid, nil
}

func (m *memStore) JoinGroup(_ context.Context, gid domain.GroupID, id domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.members[gid]
	if !ok {
		return core.ErrUnknownGroup
	}
	if !slices.Contains(members, id) {
		m.members[gid] = append(members, id)
	}
	return nil
}

func (m *memStore) GroupsOf(_ context.Context, id domain.Identity) ([]domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Group
	for _, g := range m.groups {
		if slices.Contains(m.members[g.ID], id) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) Members(_ context.Context, gid domain.GroupID) ([]domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.members[gid]
	if !ok {
		return nil, core.ErrUnknownGroup
	}
	return slices.Clone(members), nil
}

func (m *memStore) SaveDirectMessage(_ context.Context, sender, receiver domain.Identity, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direct = append(m.direct, domain.Message{Kind: domain.MessageUser, Sender: string(sender), Body: body})
	m.directTo = append(m.directTo, receiver)
	return nil
}

func (m *memStore) SaveGroupMessage(_ context.Context, gid domain.GroupID, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grouped[gid] = append(m.grouped[gid], msg)
	return nil
}

func (m *memStore) DirectHistory(_ context.Context, a, b domain.Identity, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for i, msg := range m.direct {
		to := m.directTo[i]
		from := domain.Identity(msg.Sender)
		if (from == a && to == b) || (from == b && to == a) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) GroupHistory(_ context.Context, gid domain.GroupID, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.grouped[gid]), nil
}

type harness struct {
	store *memStore
	orch  *Orchestrator
	n     int
}

func newHarness() *harness {
	st := newMemStore()
	return &harness{
		store: st,
		orch: &Orchestrator{
			Registry: app.NewRegistry(st, nil),
			Accounts: st,
			Friends:  st,
			Groups:   st,
			History:  st,
			Limiter:  NewLoginLimiter(3, time.Minute),
		},
	}
}

type peer struct {
	h      *harness
	conn   *fakeConn
	client *core.Client
}

// connect opens a new anonymous control connection from addr.
func (h *harness) connect(addr string) *peer {
	h.n++
	conn := &fakeConn{id: "conn-" + strconv.Itoa(h.n), addr: netip.MustParseAddr(addr)}
	return &peer{h: h, conn: conn, client: core.NewClient(conn)}
}

// send feeds one line and returns the frames the peer received.
func (p *peer) send(line string) []string {
	p.h.orch.OnFrame(context.Background(), p.client, line)
	return p.conn.Take()
}

// user registers id and logs it in from a fresh connection. Only the login
// reply is consumed; presence frames that arrive later stay queued.
func (h *harness) user(id, addr string) *peer {
	_ = h.store.Register(context.Background(), domain.Identity(id), "pw-"+id)
	p := h.connect(addr)
	p.send("LOGIN|" + id + "|pw-" + id)
	return p
}

// befriend links a and b without checking that they are registered.
func (h *harness) befriend(a, b string) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	x, y := domain.Identity(a), domain.Identity(b)
	h.store.friends[x] = append(h.store.friends[x], y)
	h.store.friends[y] = append(h.store.friends[y], x)
}
