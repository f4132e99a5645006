// Package domain contains entities without transport logic, just meta-data
// and the call state machine.
package domain

import (
	"errors"
	"strings"
)

const MaxIdentityLen = 36

var (
	ErrIdentityTooLong = errors.New("identity too long")
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityChars   = errors.New("identity contains reserved characters")
)

// Identity is a registered username. It is never created here, only checked.
type Identity string

// reserved by the control and media wire formats.
const reservedChars = "|:\r\n\t "

func ParseIdentity(s string) (Identity, error) {
	if len(s) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	if strings.ContainsAny(s, reservedChars) {
		return "", ErrIdentityChars
	}
	return Identity(s), nil
}

func (id Identity) String() string { return string(id) }
