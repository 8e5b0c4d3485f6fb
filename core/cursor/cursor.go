// Package cursor provides bounds-checked sequential reads over an in-memory
// byte buffer. Every multi-byte integer decode in the tag code goes through
// Synchsafe or Uint32BE so that short buffers surface as errors, not panics.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxSynchsafe is the largest value a 4-byte synchsafe integer can carry.
const MaxSynchsafe = 1<<28 - 1

// ErrNotSynchsafe is returned when a synchsafe byte has its high bit set.
var ErrNotSynchsafe = errors.New("not a synchsafe integer")

// RangeError reports a read that would run past the end of the buffer.
type RangeError struct {
	What   string
	Offset int
	Want   int
	Size   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d exceeds buffer size %d while reading %s",
		e.Want, e.Offset, e.Size, e.What)
}

// Synchsafe decodes the first four bytes of b as a synchsafe integer
// (7 usable bits per byte, high bit clear).
func Synchsafe(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, &RangeError{What: "synchsafe integer", Want: 4, Size: len(b)}
	}
	if (b[0]|b[1]|b[2]|b[3])&0x80 != 0 {
		return 0, fmt.Errorf("% x: %w", b[:4], ErrNotSynchsafe)
	}
	return uint32(b[0])<<21 | uint32(b[1])<<14 | uint32(b[2])<<7 | uint32(b[3]), nil
}

// Uint32BE decodes the first four bytes of b as a plain big-endian integer.
func Uint32BE(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, &RangeError{What: "big-endian integer", Want: 4, Size: len(b)}
	}
	return binary.BigEndian.Uint32(b), nil
}

// AppendSynchsafe appends the 4-byte synchsafe encoding of n to dst.
func AppendSynchsafe(dst []byte, n uint32) ([]byte, error) {
	if n > MaxSynchsafe {
		return dst, fmt.Errorf("%d does not fit in 28 bits: %w", n, ErrNotSynchsafe)
	}
	return append(dst,
		byte(n>>21)&0x7F,
		byte(n>>14)&0x7F,
		byte(n>>7)&0x7F,
		byte(n)&0x7F,
	), nil
}

// Cursor reads forward through a byte slice, tracking its offset.
type Cursor struct {
	buf []byte
	off int
}

// New returns a Cursor positioned at the start of b.
func New(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Offset returns the current read position.
func (c *Cursor) Offset() int { return c.off }

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Seek moves the cursor to an absolute offset. Seeking to Len() is allowed.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return &RangeError{What: "seek", Offset: off, Size: len(c.buf)}
	}
	c.off = off
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int, what string) error {
	if n < 0 || n > c.Remaining() {
		return &RangeError{What: what, Offset: c.off, Want: n, Size: len(c.buf)}
	}
	c.off += n
	return nil
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int, what string) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, &RangeError{What: what, Offset: c.off, Want: n, Size: len(c.buf)}
	}
	return c.buf[c.off : c.off+n], nil
}

// Bytes returns the next n bytes and advances past them. The returned slice
// aliases the underlying buffer.
func (c *Cursor) Bytes(n int, what string) ([]byte, error) {
	b, err := c.Peek(n, what)
	if err != nil {
		return nil, err
	}
	c.off += n
	return b, nil
}

// Byte reads a single byte.
func (c *Cursor) Byte(what string) (byte, error) {
	b, err := c.Bytes(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32BE reads a plain big-endian integer.
func (c *Cursor) Uint32BE(what string) (uint32, error) {
	b, err := c.Bytes(4, what)
	if err != nil {
		return 0, err
	}
	return Uint32BE(b)
}

// Synchsafe reads a synchsafe integer. On a malformed value the cursor
// still advances past the four bytes.
func (c *Cursor) Synchsafe(what string) (uint32, error) {
	b, err := c.Bytes(4, what)
	if err != nil {
		return 0, err
	}
	n, err := Synchsafe(b)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return n, nil
}
