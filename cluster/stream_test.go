package cluster

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/pkg/types"
)

func TestStream_WriteReadSeek(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	h, err := s.Add()
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 0, h.Index())

	n, err := h.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	size, err := h.Len()
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)
	assert.Equal(t, 3, s.ClusterCount())

	pos, err := h.Seek(6, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)
	got, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)

	pos, err = h.Seek(-5, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)
	_, err = h.Write([]byte("WORLD"))
	require.NoError(t, err)

	pos, err = h.Seek(-11, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
	got, err = io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello WORLD"), got)

	_, err = h.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, types.ErrPrecondition)
	_, err = h.Seek(0, 42)
	require.ErrorIs(t, err, types.ErrPrecondition)
}

func TestStream_ReadAtEOF(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	idx, err := s.AddBytes([]byte("abcdef"))
	require.NoError(t, err)
	h, err := s.Open(idx)
	require.NoError(t, err)
	defer h.Close()

	p := make([]byte, 4)
	n, err := h.ReadAt(p, 4)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte("ef"), p[:n])

	n, err = h.ReadAt(p, 6)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = h.ReadAt(p, -1)
	require.ErrorIs(t, err, types.ErrPrecondition)
	_, err = h.WriteAt(p, -1)
	require.ErrorIs(t, err, types.ErrPrecondition)
}

func TestStream_WriteAtPastEndZeroFills(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	h, err := s.Add()
	require.NoError(t, err)
	_, err = h.Write([]byte("ab"))
	require.NoError(t, err)

	_, err = h.WriteAt([]byte("z"), 9)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	got, err := s.ReadAll(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0, 0, 'z'}, got)
}

func TestStream_SetLength(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	h, err := s.Add()
	require.NoError(t, err)
	defer h.Close()
	_, err = h.Write(pattern(10, 1))
	require.NoError(t, err)

	// Shrinking inside the last cluster and growing again exposes zeros,
	// never the stale bytes.
	require.NoError(t, h.SetLength(9))
	require.NoError(t, h.SetLength(10))
	p := make([]byte, 10)
	_, err = h.ReadAt(p, 0)
	require.NoError(t, err)
	assert.Equal(t, append(pattern(9, 1), 0), p)

	require.NoError(t, h.SetLength(5))
	assert.Equal(t, 2, s.ClusterCount())
	require.NoError(t, h.SetLength(12))
	assert.Equal(t, 3, s.ClusterCount())
	p = make([]byte, 12)
	_, err = h.ReadAt(p, 0)
	require.NoError(t, err)
	assert.Equal(t, append(pattern(5, 1), make([]byte, 7)...), p)

	require.ErrorIs(t, h.SetLength(-1), types.ErrPrecondition)
}

func TestStream_ShrinkToEmpty(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4, Compaction: TrimTail})
	h, err := s.Add()
	require.NoError(t, err)
	_, err = h.Write(pattern(10, 1)) // clusters 0,1,2
	require.NoError(t, err)
	_, err = s.AddBytes([]byte{7}) // cluster 3 keeps the region from being trimmed
	require.NoError(t, err)

	require.NoError(t, h.SetLength(0))
	require.NoError(t, h.Close())

	l, err := s.Listing(0)
	require.NoError(t, err)
	assert.Equal(t, format.NilCluster, l.Start)
	assert.Equal(t, format.NilCluster, l.End)
	assert.Equal(t, uint64(0), l.Size)
	assert.Equal(t, []int32{0, 1, 2}, s.FreeClusters())
	for i := range 3 {
		c, err := s.Cluster(i)
		require.NoError(t, err)
		assert.Equal(t, format.TraitFree, c.Traits)
	}

	got, err := s.ReadAll(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, got)
}

func TestStream_ClosedHandle(t *testing.T) {
	s, _ := newMemStorage(t, Options{})
	h, err := s.Add()
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.Write([]byte("x"))
	require.ErrorIs(t, err, types.ErrState)
	_, err = h.Read(make([]byte, 1))
	require.ErrorIs(t, err, types.ErrState)
	_, err = h.Len()
	require.ErrorIs(t, err, types.ErrState)
	_, err = h.Seek(0, io.SeekStart)
	require.ErrorIs(t, err, types.ErrState)
	require.ErrorIs(t, h.SetLength(1), types.ErrState)
}

func TestStream_ConcurrentHandlesOnDifferentStreams(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 2})
	a, err := s.Add()
	require.NoError(t, err)
	b, err := s.Add()
	require.NoError(t, err)

	// Interleaved growth makes the two chains alternate through the region.
	for i := range 4 {
		_, err = a.Write([]byte{byte('a' + i), byte('a' + i)})
		require.NoError(t, err)
		_, err = b.Write([]byte{byte('A' + i), byte('A' + i)})
		require.NoError(t, err)
	}
	require.NoError(t, a.SetLength(3))
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	assert.Equal(t, [][]byte{[]byte("aab"), []byte("AABBCCDD")}, readAllStreams(t, s))
	assert.Equal(t, 6, s.ClusterCount())
}
