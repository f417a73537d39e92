package cursor

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadAdvancesOffset(t *testing.T) {
	c := New([]byte{1, 2, 3, 4})
	b, err := c.Read(2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, b)
	require.Equal(t, int64(2), c.Tell())
}

func TestReadPastEndIsShortRead(t *testing.T) {
	c := New([]byte{1, 2})
	_, err := c.Read(3)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestSeekWhence(t *testing.T) {
	c := New(make([]byte, 10))
	_, err := c.Seek(4, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(4), c.Tell())

	_, err = c.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(6), c.Tell())

	_, err = c.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(9), c.Tell())
}

func TestSeekOutOfRange(t *testing.T) {
	c := New(make([]byte, 4))
	_, err := c.Seek(5, io.SeekStart)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = c.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestRewindUndoesPeek(t *testing.T) {
	c := New([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	_, err := c.Read(8)
	require.NoError(t, err)
	require.NoError(t, c.Rewind(8))
	require.Equal(t, int64(0), c.Tell())
}

func TestEOF(t *testing.T) {
	c := New([]byte{1})
	require.False(t, c.EOF())
	_, err := c.Read(1)
	require.NoError(t, err)
	require.True(t, c.EOF())
}

func TestPeekDoesNotAdvance(t *testing.T) {
	c := New([]byte{9, 8, 7})
	b, err := c.Peek(2)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8}, b)
	require.Equal(t, int64(0), c.Tell())
}
