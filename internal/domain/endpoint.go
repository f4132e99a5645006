package domain

import (
	"errors"
	"net/netip"
	"strconv"
	"time"
)

var ErrInvalidPort = errors.New("invalid port")

// ParsePort accepts a decimal port in 1..65535.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return 0, ErrInvalidPort
	}
	return uint16(n), nil
}

// AddressEntry is the last observed media endpoint of an identity.
// Addr comes from the control connection, Port is client-asserted
// (or learned from a media datagram).
type AddressEntry struct {
	Addr      netip.Addr
	Port      uint16
	UpdatedAt time.Time
	// Learned is set once media has arrived for this entry; the port is
	// not learned again until the client updates its address.
	Learned bool
}

func (e AddressEntry) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Addr, e.Port)
}

func (e AddressEntry) Valid() bool {
	return e.Addr.IsValid() && e.Port != 0
}
