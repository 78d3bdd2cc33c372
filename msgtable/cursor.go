package msgtable

import (
	"encoding/binary"
	"fmt"
)

// cursor reads little-endian values from an owned buffer. Every read is
// bounds checked, a corrupt offset fails with errOutOfBounds instead of
// reading past the buffer.
type cursor struct {
	buf []byte
	off int
}

var errOutOfBounds = fmt.Errorf("offset out of bounds")

func newCursor(buf []byte, off int) cursor {
	return cursor{buf: buf, off: off}
}

// Remaining returns the number of unread bytes.
func (c *cursor) Remaining() int {
	if c.off < 0 || c.off > len(c.buf) {
		return 0
	}
	return len(c.buf) - c.off
}

func (c *cursor) Offset() int {
	return c.off
}

// Seek moves to an absolute offset.
func (c *cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return fmt.Errorf("%w: seek to %d, buffer is %d bytes", errOutOfBounds, off, len(c.buf))
	}
	c.off = off
	return nil
}

// Skip advances n bytes.
func (c *cursor) Skip(n int) error {
	return c.Seek(c.off + n)
}

// Peek returns the next n bytes without copying or advancing.
func (c *cursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, buffer is %d bytes", errOutOfBounds, n, c.off, len(c.buf))
	}
	return c.buf[c.off : c.off+n], nil
}

func (c *cursor) Uint16() (uint16, error) {
	b, err := c.Peek(2)
	if err != nil {
		return 0, err
	}
	c.off += 2
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) Uint32() (uint32, error) {
	b, err := c.Peek(4)
	if err != nil {
		return 0, err
	}
	c.off += 4
	return binary.LittleEndian.Uint32(b), nil
}
