package medium

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	_ Medium = (*Memory)(nil)
	_ Medium = (*File)(nil)
)

func TestMemory_ResizeZeroFills(t *testing.T) {
	m := NewMemory([]byte{1, 2, 3, 4})
	require.NoError(t, m.Resize(2))
	require.Equal(t, []byte{1, 2}, m.Bytes())

	// Growing back into spare capacity must not resurrect old bytes.
	require.NoError(t, m.Resize(4))
	require.Equal(t, []byte{1, 2, 0, 0}, m.Bytes())

	require.NoError(t, m.Resize(100))
	require.Equal(t, int64(100), m.Size())
	require.Equal(t, byte(0), m.Bytes()[99])
}

func TestMemory_CopiesInitial(t *testing.T) {
	initial := []byte{9, 9}
	m := NewMemory(initial)
	m.Bytes()[0] = 1
	require.Equal(t, byte(9), initial[0])
	require.Equal(t, []byte{1, 9}, m.Snapshot())
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory(nil)
	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Resize(10), ErrClosed)
	require.ErrorIs(t, m.Flush(context.Background()), ErrClosed)
}

func TestParseFlushMode(t *testing.T) {
	for _, mode := range []FlushMode{FlushAuto, FlushDataOnly, FlushFull} {
		got, err := ParseFlushMode(mode.String())
		require.NoError(t, err)
		require.Equal(t, mode, got)
	}
	_, err := ParseFlushMode("sometimes")
	require.Error(t, err)
}
