package protocol

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// MaxMediaHeader is the largest header a one-byte length prefix can describe.
const MaxMediaHeader = 255

var ErrMediaHeaderTooLong = errors.New("media header too long")

// MediaHeader names the two parties of a media datagram.
type MediaHeader struct {
	Sender   domain.Identity
	Receiver domain.Identity
}

// ParseMediaFrame decodes the header of one datagram. It reports false for
// anything malformed; media errors are never surfaced further.
func ParseMediaFrame(data []byte) (MediaHeader, bool) {
	if len(data) < 1 {
		return MediaHeader{}, false
	}
	hl := int(data[0])
	if hl == 0 || len(data) < 1+hl {
		return MediaHeader{}, false
	}
	raw := data[1 : 1+hl]
	if !utf8.Valid(raw) {
		return MediaHeader{}, false
	}
	sender, receiver, ok := strings.Cut(string(raw), Sep)
	if !ok {
		return MediaHeader{}, false
	}
	s, err := domain.ParseIdentity(sender)
	if err != nil {
		return MediaHeader{}, false
	}
	r, err := domain.ParseIdentity(receiver)
	if err != nil {
		return MediaHeader{}, false
	}
	return MediaHeader{Sender: s, Receiver: r}, true
}

// EncodeMediaFrame builds one datagram.
func EncodeMediaFrame(sender, receiver domain.Identity, payload []byte) ([]byte, error) {
	header := string(sender) + Sep + string(receiver)
	if len(header) > MaxMediaHeader {
		return nil, ErrMediaHeaderTooLong
	}
	out := make([]byte, 0, 1+len(header)+len(payload))
	out = append(out, byte(len(header)))
	out = append(out, header...)
	out = append(out, payload...)
	return out, nil
}
