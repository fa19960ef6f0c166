package at

import (
	"bytes"
	"errors"
)

// DefaultLineCapacity is the line buffer size used when none is configured.
// One slot is reserved, so the longest accepted command is two bytes shorter.
const DefaultLineCapacity = 128

// ErrLineTooLong is returned by Feed when a command line outgrows the line
// buffer. The buffered bytes are dropped and the rest of the line, up to the
// next terminator, is ignored.
var ErrLineTooLong = errors.New("command line too long")

// LineAssembler accumulates a byte stream into command lines. It owns a fixed
// buffer that is never grown. It is not safe for concurrent use; the
// emulator's driving loop is its only owner.
type LineAssembler struct {
	buf []byte
	n   int
	// discarding is set after an overflow until the over-long line ends.
	discarding bool
}

// NewLineAssembler returns an assembler with the given buffer capacity.
// Capacities below 2 fall back to DefaultLineCapacity.
func NewLineAssembler(capacity int) *LineAssembler {
	if capacity < 2 {
		capacity = DefaultLineCapacity
	}
	return &LineAssembler{buf: make([]byte, capacity)}
}

// Feed processes exactly one byte.
//
// It returns a non-nil line when b terminates a non-empty line; the line holds
// no terminator bytes and does not alias the internal buffer. A terminator
// with nothing buffered (the LF of a CRLF pair) produces nothing.
//
// ErrLineTooLong is returned once per over-long line. It is a diagnostic, the
// assembler has already recovered and keeps accepting input.
func (a *LineAssembler) Feed(b byte) ([]byte, error) {
	if IsTerminator(b) {
		if a.discarding {
			a.discarding = false
			return nil, nil
		}
		if a.n == 0 {
			return nil, nil
		}
		line := bytes.Clone(a.buf[:a.n])
		a.n = 0
		return line, nil
	}

	if a.discarding {
		return nil, nil
	}

	if a.n+1 >= len(a.buf)-1 {
		a.n = 0
		a.discarding = true
		return nil, ErrLineTooLong
	}

	a.buf[a.n] = b
	a.n++
	return nil, nil
}

// Len returns the number of bytes of the in-progress line.
func (a *LineAssembler) Len() int {
	return a.n
}

// Cap returns the fixed buffer capacity.
func (a *LineAssembler) Cap() int {
	return len(a.buf)
}

// MaxLineLength is the longest command line that will be dispatched.
func (a *LineAssembler) MaxLineLength() int {
	return len(a.buf) - 2
}

// Reset drops any partial line.
func (a *LineAssembler) Reset() {
	a.n = 0
	a.discarding = false
}
