package app

import (
	"errors"
	"net/netip"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoActiveCall   = errors.New("no active call for pair")
	ErrNoAddress      = errors.New("receiver address unknown")
	ErrSourceMismatch = errors.New("source address does not match sender")
)

// UpdateAddress records the media endpoint of id. addr must be the observed
// address of the control connection, port is client-asserted.
func (r *Registry) UpdateAddress(id domain.Identity, addr netip.Addr, port uint16) {
	r.mu.Lock()
	r.updateAddressLocked(id, addr, port)
	r.mu.Unlock()
	log.Debug().Str("module", "app.addressbook").Str("identity", string(id)).
		Str("addr", addr.String()).Uint16("port", port).Msg("address updated")
}

func (r *Registry) updateAddressLocked(id domain.Identity, addr netip.Addr, port uint16) domain.AddressEntry {
	e := domain.AddressEntry{Addr: addr.Unmap(), Port: port, UpdatedAt: r.now()}
	r.addrs[id] = e
	return e
}

func (r *Registry) Address(id domain.Identity) (domain.AddressEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.addrs[id]
	return e, ok
}

// RouteOptions tunes how media sources are checked against the address book.
type RouteOptions struct {
	// LearnPorts takes the sender's port from the first datagram whose
	// source address matches the recorded one. Later datagrams never move
	// it; UpdateAddress rearms learning.
	LearnPorts bool
	// StrictSource drops datagrams whose source address is not the
	// sender's recorded address.
	StrictSource bool
}

// Route resolves where a media datagram from sender to receiver goes. The
// receiver's session must be ACTIVE with sender as partner and the receiver
// must have a known endpoint.
func (r *Registry) Route(sender, receiver domain.Identity, src netip.AddrPort, opt RouteOptions) (netip.AddrPort, error) {
	src = netip.AddrPortFrom(src.Addr().Unmap(), src.Port())

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.calls[receiver]
	if !ok || s.State != domain.CallActive || s.Partner(receiver) != sender {
		return netip.AddrPort{}, ErrNoActiveCall
	}

	if se, ok := r.addrs[sender]; ok && se.Addr == src.Addr() {
		if opt.LearnPorts && !se.Learned {
			if se.Port != src.Port() {
				log.Debug().Str("module", "app.addressbook").Str("identity", string(sender)).
					Uint16("from", se.Port).Uint16("to", src.Port()).Msg("media port learned")
				se.Port = src.Port()
				se.UpdatedAt = r.now()
			}
			se.Learned = true
			r.addrs[sender] = se
		}
	} else if opt.StrictSource {
		return netip.AddrPort{}, ErrSourceMismatch
	}

	dst, ok := r.addrs[receiver]
	if !ok || !dst.Valid() {
		return netip.AddrPort{}, ErrNoAddress
	}
	return dst.AddrPort(), nil
}
