// Package cursor provides a seekable read primitive over an in-memory
// byte slice, the load-bearing cursor the property deserializer peeks
// and rewinds throughout decoding.
package cursor

import (
	"io"

	"github.com/pkg/errors"
)

// ErrShortRead is returned when a read would run past the end of the buffer.
var ErrShortRead = errors.New("cursor: short read")

// ErrOutOfRange is returned when a seek would land outside [0, size].
var ErrOutOfRange = errors.New("cursor: seek out of range")

// ErrNegativeLength is returned when a read of negative length is requested.
var ErrNegativeLength = errors.New("cursor: negative read length")

// Cursor is a seekable, bounded reader over a fully materialized byte slice.
type Cursor struct {
	data   []byte
	offset int64
}

// New wraps data in a Cursor positioned at offset 0.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Tell returns the current offset.
func (c *Cursor) Tell() int64 {
	return c.offset
}

// Size returns the total buffer size.
func (c *Cursor) Size() int64 {
	return int64(len(c.data))
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int64 {
	return c.Size() - c.offset
}

// EOF reports whether the cursor sits at the end of the buffer.
func (c *Cursor) EOF() bool {
	return c.offset >= c.Size()
}

// Seek repositions the cursor. whence follows io.SeekStart/Current/End.
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = c.offset + offset
	case io.SeekEnd:
		next = c.Size() + offset
	default:
		return c.offset, errors.Errorf("cursor: invalid whence %d", whence)
	}
	if next < 0 || next > c.Size() {
		return c.offset, errors.Wrapf(ErrOutOfRange, "offset %d (size %d)", next, c.Size())
	}
	c.offset = next
	return c.offset, nil
}

// Rewind is shorthand for Seek(-n, io.SeekCurrent), used by the struct-body
// and map-property peek/rewind loops.
func (c *Cursor) Rewind(n int64) error {
	_, err := c.Seek(-n, io.SeekCurrent)
	return err
}

// Read reads exactly n bytes, advancing the cursor. A short read (fewer
// than n bytes available) is fatal: the caller gets ErrShortRead with the
// failing offset attached.
func (c *Cursor) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if n == 0 {
		return nil, nil
	}
	if c.offset+int64(n) > c.Size() {
		return nil, errors.Wrapf(ErrShortRead, "wanted %d bytes at offset %d, have %d", n, c.offset, c.Remaining())
	}
	out := c.data[c.offset : c.offset+int64(n)]
	c.offset += int64(n)
	return out, nil
}

// Peek reads n bytes without advancing the cursor.
func (c *Cursor) Peek(n int) ([]byte, error) {
	start := c.offset
	data, err := c.Read(n)
	c.offset = start
	return data, err
}
