// Package primitive implements the fixed-width and length-prefixed
// primitive reads the tagged-property grammar is built from: little-endian
// integers and floats of several widths, and the dual utf-8/utf-16le
// string encoding the format uses depending on the sign of the length
// prefix.
package primitive

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mtojek/uatree/pkg/uatree/cursor"
)

// Reader reads primitive values from an underlying Cursor.
type Reader struct {
	c *cursor.Cursor
}

// New wraps a Cursor in a Reader.
func New(c *cursor.Cursor) *Reader {
	return &Reader{c: c}
}

// Cursor returns the underlying cursor, for callers that need to peek or
// rewind around a primitive read (the struct-body and map-property loops).
func (r *Reader) Cursor() *cursor.Cursor {
	return r.c
}

// Int reads a little-endian integer of the given byte width (1, 2, 4, or 8)
// and returns it sign-extended into an int64.
func (r *Reader) Int(size int, signed bool) (int64, error) {
	b, err := r.c.Read(size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		if signed {
			return int64(int8(b[0])), nil
		}
		return int64(b[0]), nil
	case 2:
		u := binary.LittleEndian.Uint16(b)
		if signed {
			return int64(int16(u)), nil
		}
		return int64(u), nil
	case 4:
		u := binary.LittleEndian.Uint32(b)
		if signed {
			return int64(int32(u)), nil
		}
		return int64(u), nil
	case 8:
		u := binary.LittleEndian.Uint64(b)
		if signed {
			return int64(u), nil
		}
		return int64(u), nil
	default:
		return 0, errors.Errorf("primitive: unsupported integer width %d", size)
	}
}

// Float reads a little-endian IEEE-754 float of the given byte width (4 or 8).
func (r *Reader) Float(size int) (float64, error) {
	b, err := r.c.Read(size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, errors.Errorf("primitive: unsupported float width %d", size)
	}
}

// String reads a length-prefixed string. When size is nil, a signed 32-bit
// length prefix is read first. A non-negative length L reads L bytes as
// utf-8; a negative length reads 2*|L| bytes as utf-16le. The result is
// trimmed at the first NUL, matching the format's null-terminated strings.
func (r *Reader) String(size *int32) (string, error) {
	length := int32(0)
	if size != nil {
		length = *size
	} else {
		l, err := r.Int(4, true)
		if err != nil {
			return "", errors.Wrap(err, "primitive: read string length prefix")
		}
		length = int32(l)
	}

	var raw []byte
	var err error
	var decoded string

	if length < 0 {
		byteCount := int(-length) * 2
		raw, err = r.c.Read(byteCount)
		if err != nil {
			return "", errors.Wrap(err, "primitive: read utf-16le string body")
		}
		decoded, err = decodeUTF16LE(raw)
		if err != nil {
			return "", errors.Wrap(err, "primitive: decode utf-16le string body")
		}
	} else {
		raw, err = r.c.Read(int(length))
		if err != nil {
			return "", errors.Wrap(err, "primitive: read utf-8 string body")
		}
		decoded = string(raw)
	}

	return trimNull(decoded), nil
}

func trimNull(s string) string {
	if idx := indexByte(s, 0); idx >= 0 {
		return s[:idx]
	}
	return s
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func decodeUTF16LE(raw []byte) (string, error) {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
