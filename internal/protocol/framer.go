package protocol

import (
	"bytes"
	"errors"
)

// DefaultMaxLine bounds a single buffered control line.
const DefaultMaxLine = 64 << 10

var ErrLineTooLong = errors.New("control line too long")

// LineBuffer reassembles control frames from stream chunks. Each '\n'
// completes exactly one frame; bytes after the last '\n' stay buffered.
// A line that outgrows the limit is discarded up to its terminating '\n'.
// Not safe for concurrent use; each connection owns one.
type LineBuffer struct {
	buf        []byte
	max        int
	discarding bool
	dropped    int
}

func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineBuffer{max: max}
}

// Feed appends chunk and returns the complete lines it finished, without the
// trailing "\n" or "\r\n". Oversized lines are counted in Dropped.
func (b *LineBuffer) Feed(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			b.appendPartial(chunk)
			break
		}
		if b.discarding {
			b.discarding = false
		} else if len(b.buf)+i > b.max {
			b.dropped++
		} else {
			b.buf = append(b.buf, chunk[:i]...)
			lines = append(lines, string(bytes.TrimSuffix(b.buf, []byte{'\r'})))
		}
		b.buf = b.buf[:0]
		chunk = chunk[i+1:]
	}
	return lines
}

func (b *LineBuffer) appendPartial(p []byte) {
	if b.discarding {
		return
	}
	if len(b.buf)+len(p) > b.max {
		b.buf = b.buf[:0]
		b.discarding = true
		b.dropped++
		return
	}
	b.buf = append(b.buf, p...)
}

// Pending is the number of buffered bytes of the unfinished line.
func (b *LineBuffer) Pending() int { return len(b.buf) }

// Dropped counts oversized lines thrown away so far.
func (b *LineBuffer) Dropped() int { return b.dropped }
