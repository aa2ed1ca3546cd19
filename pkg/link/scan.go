package link

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// LengthSize is the size of the length header.
const LengthSize = 4

// ContainsACK reports whether line acknowledges a request. Any occurrence
// of token counts, so with "ACK" a "NACK" line acknowledges too.
func ContainsACK(line, token string) bool {
	return token != "" && strings.Contains(line, token)
}

// ParseLength decodes the big-endian payload length header.
func ParseLength(hdr [LengthSize]byte) uint32 {
	return binary.BigEndian.Uint32(hdr[:])
}

// lineScanner accumulates a text line in a fixed buffer. Once the buffer is
// full, further bytes of the line are dropped.
type lineScanner struct {
	buf []byte
	n   int
}

func newLineScanner(size int) *lineScanner {
	if size < 2 {
		size = 2
	}
	// one slot is reserved like a C string terminator would be.
	return &lineScanner{buf: make([]byte, size-1)}
}

// Feed consumes one byte. When b terminates a line, the line without
// trailing CR/LF is returned with done set. The returned slice is only
// valid until the next Feed.
func (s *lineScanner) Feed(b byte) (line []byte, done bool) {
	if b == '\n' {
		line = bytes.TrimRight(s.buf[:s.n], "\r\n")
		s.n = 0
		return line, true
	}
	if s.n < len(s.buf) {
		s.buf[s.n] = b
		s.n++
	}
	return nil, false
}

// Reset clears the line.
func (s *lineScanner) Reset() {
	s.n = 0
}

// SOFMatcher finds the start-of-frame marker in a byte stream.
type SOFMatcher struct {
	marker []byte
	idx    int
}

// NewSOFMatcher creates a matcher for marker, which must not be empty.
func NewSOFMatcher(marker []byte) *SOFMatcher {
	return &SOFMatcher{marker: marker}
}

// Feed consumes one byte and reports whether the marker is now complete.
// A byte extending the partial match advances it; a mismatching byte equal
// to the first marker byte restarts the match at 1; anything else resets.
func (m *SOFMatcher) Feed(b byte) bool {
	if m.Done() {
		m.idx = 0
	}
	switch {
	case b == m.marker[m.idx]:
		m.idx++
	case b == m.marker[0]:
		m.idx = 1
	default:
		m.idx = 0
	}
	return m.Done()
}

// Done reports whether the full marker was matched.
func (m *SOFMatcher) Done() bool {
	return m.idx == len(m.marker)
}

// Matched returns the length of the current partial match.
func (m *SOFMatcher) Matched() int {
	return m.idx
}

// Reset discards any partial match.
func (m *SOFMatcher) Reset() {
	m.idx = 0
}
