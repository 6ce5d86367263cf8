package cluster

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/medium"
	"github.com/joshuapare/clusterkit/pkg/types"
)

func newMemStorage(t *testing.T, opts Options) (*Storage, *medium.Memory) {
	t.Helper()
	m := medium.NewMemory(nil)
	s, err := New(m, opts)
	require.NoError(t, err)
	return s, m
}

// reopen loads a fresh Storage over a copy of m's bytes.
func reopen(t *testing.T, m *medium.Memory, opts Options) *Storage {
	t.Helper()
	s, err := New(medium.NewMemory(m.Snapshot()), opts)
	require.NoError(t, err)
	return s
}

func readAllStreams(t *testing.T, s *Storage) [][]byte {
	t.Helper()
	out := make([][]byte, s.Count())
	for i := range out {
		b, err := s.ReadAll(i)
		require.NoError(t, err, "stream %d", i)
		out[i] = b
	}
	return out
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func TestNew_InitializesEmptyMedium(t *testing.T) {
	s, m := newMemStorage(t, Options{ClusterSize: 32})

	assert.Equal(t, int64(format.HeaderSize), m.Size())
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0, s.ClusterCount())
	assert.Equal(t, 32, s.ClusterSize())
	assert.Equal(t, int64(format.HeaderSize), s.MetadataLength())

	hdr := s.Header()
	assert.Equal(t, uint8(format.Version), hdr.Version)
	assert.Equal(t, uint32(32), hdr.ClusterSize)
}

func TestNew_RejectsOversizedClusters(t *testing.T) {
	_, err := New(medium.NewMemory(nil), Options{ClusterSize: format.MaxClusterSize + 1})
	require.ErrorIs(t, err, types.ErrPrecondition)

	_, err = New(nil, Options{})
	require.ErrorIs(t, err, types.ErrPrecondition)
}

func TestStorage_RoundTrip(t *testing.T) {
	const cs = 16
	s, m := newMemStorage(t, Options{ClusterSize: cs})

	want := [][]byte{
		{},
		{0x42},
		pattern(cs, 1),
		pattern(cs+1, 2),
		pattern(3*cs-1, 3),
		[]byte("hello, clusters"),
	}
	for i, p := range want {
		idx, err := s.AddBytes(p)
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}
	// A second append grows an existing chain in place.
	require.NoError(t, s.AppendBytes(1, []byte{0x43, 0x44}))
	want[1] = []byte{0x42, 0x43, 0x44}

	assert.Equal(t, want, readAllStreams(t, s))

	reloaded := reopen(t, m, Options{})
	assert.Equal(t, cs, reloaded.ClusterSize())
	assert.Equal(t, want, readAllStreams(t, reloaded))

	require.NoError(t, s.Load())
	assert.Equal(t, want, readAllStreams(t, s))
}

func TestStorage_ConcreteScenario(t *testing.T) {
	s, m := newMemStorage(t, Options{ClusterSize: 1})
	for _, b := range []byte{0, 1, 2} {
		_, err := s.AddBytes([]byte{b})
		require.NoError(t, err)
	}

	require.NoError(t, s.Remove(0))

	require.Equal(t, 2, s.Count())
	got0, err := s.ReadAll(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got0)
	got1, err := s.ReadAll(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got1)

	// headerLength covers the header and the two remaining listings.
	headerLength := s.MetadataLength()
	assert.Equal(t, headerLength+2*(1+9), m.Size())
	assert.Empty(t, s.FreeClusters())

	assert.Equal(t, [][]byte{{1}, {2}}, readAllStreams(t, reopen(t, m, Options{})))
}

func TestStorage_IndexContiguity(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	var model [][]byte

	check := func(step string) {
		t.Helper()
		require.Equal(t, len(model), s.Count(), step)
		listings, err := s.Listings()
		require.NoError(t, err, step)
		require.Len(t, listings, s.Count(), step)
		require.Equal(t, model, readAllStreams(t, s), step)
	}

	add := func(p []byte) {
		_, err := s.AddBytes(p)
		require.NoError(t, err)
		model = append(model, p)
	}
	insert := func(i int, p []byte) {
		h, err := s.Insert(i)
		require.NoError(t, err)
		_, err = h.Write(p)
		require.NoError(t, err)
		require.NoError(t, h.Close())
		model = append(model[:i], append([][]byte{p}, model[i:]...)...)
	}
	remove := func(i int) {
		require.NoError(t, s.Remove(i))
		model = append(model[:i], model[i+1:]...)
	}
	swap := func(i, j int) {
		require.NoError(t, s.Swap(i, j))
		model[i], model[j] = model[j], model[i]
	}

	add(pattern(5, 0x10))
	add(pattern(9, 0x20))
	check("add two")
	insert(0, pattern(3, 0x30))
	check("insert head")
	insert(3, pattern(12, 0x40))
	check("insert tail")
	insert(2, []byte{})
	check("insert empty middle")
	swap(0, 4)
	check("swap ends")
	remove(2)
	check("remove middle")
	remove(0)
	check("remove head")
	add(pattern(7, 0x50))
	swap(1, 2)
	check("add and swap")
	remove(s.Count() - 1)
	remove(0)
	remove(0)
	check("remove all")
	assert.Equal(t, 0, s.ClusterCount())
}

func TestStorage_RemoveThenReuse(t *testing.T) {
	t.Run("trim keeps holes for reuse", func(t *testing.T) {
		s, m := newMemStorage(t, Options{ClusterSize: 4, Compaction: TrimTail})
		for i := range 3 {
			_, err := s.AddBytes(pattern(8, byte(i*16)))
			require.NoError(t, err)
		}
		require.Equal(t, 6, s.ClusterCount())

		require.NoError(t, s.Remove(0))
		assert.Equal(t, 6, s.ClusterCount())
		assert.Equal(t, []int32{0, 1}, s.FreeClusters())

		// The free pool survives a reload.
		assert.Equal(t, []int32{0, 1}, reopen(t, m, Options{Compaction: TrimTail}).FreeClusters())

		_, err := s.AddBytes(pattern(8, 0x70))
		require.NoError(t, err)
		assert.Equal(t, 6, s.ClusterCount(), "freed clusters are reused before growing")
		assert.Empty(t, s.FreeClusters())

		l, err := s.Listing(2)
		require.NoError(t, err)
		assert.Equal(t, int32(0), l.Start)
		assert.Equal(t, int32(1), l.End)
	})

	t.Run("trim drops free tail", func(t *testing.T) {
		s, _ := newMemStorage(t, Options{ClusterSize: 4, Compaction: TrimTail})
		for i := range 3 {
			_, err := s.AddBytes(pattern(8, byte(i)))
			require.NoError(t, err)
		}
		require.NoError(t, s.Remove(1))
		require.NoError(t, s.Remove(1))
		assert.Equal(t, 2, s.ClusterCount())
		assert.Empty(t, s.FreeClusters())
	})

	t.Run("compact relocates tail", func(t *testing.T) {
		s, m := newMemStorage(t, Options{ClusterSize: 4})
		for i := range 3 {
			_, err := s.AddBytes(pattern(8, byte(i*16)))
			require.NoError(t, err)
		}
		require.NoError(t, s.Remove(0))
		assert.Equal(t, 4, s.ClusterCount())
		assert.Empty(t, s.FreeClusters())
		assert.Equal(t, [][]byte{pattern(8, 16), pattern(8, 32)}, readAllStreams(t, s))
		assert.Equal(t, s.MetadataLength()+4*(4+9), m.Size())

		_, err := s.AddBytes(pattern(4, 0x70))
		require.NoError(t, err)
		assert.Equal(t, 5, s.ClusterCount())
	})
}

func TestStorage_Clear(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	_, err := s.AddBytes(pattern(10, 1))
	require.NoError(t, err)
	_, err = s.AddBytes(pattern(6, 2))
	require.NoError(t, err)

	require.NoError(t, s.Clear(0))
	assert.Equal(t, 2, s.Count())
	l, err := s.Listing(0)
	require.NoError(t, err)
	assert.True(t, l.IsEmpty())
	assert.Equal(t, 2, s.ClusterCount())
	assert.Equal(t, [][]byte{{}, pattern(6, 2)}, readAllStreams(t, s))
}

func TestStorage_Preconditions(t *testing.T) {
	s, _ := newMemStorage(t, Options{})
	_, err := s.AddBytes([]byte("x"))
	require.NoError(t, err)

	_, err = s.Open(1)
	require.ErrorIs(t, err, types.ErrPrecondition)
	_, err = s.Open(-1)
	require.ErrorIs(t, err, types.ErrPrecondition)
	_, err = s.Insert(2)
	require.ErrorIs(t, err, types.ErrPrecondition)
	require.ErrorIs(t, s.Remove(1), types.ErrPrecondition)
	require.ErrorIs(t, s.Swap(0, 1), types.ErrPrecondition)
	require.ErrorIs(t, s.Clear(5), types.ErrPrecondition)
	_, err = s.ReadAll(1)
	require.ErrorIs(t, err, types.ErrPrecondition)
	require.ErrorIs(t, s.AppendBytes(3, []byte("y")), types.ErrPrecondition)
	_, err = s.Cluster(1)
	require.ErrorIs(t, err, types.ErrPrecondition)

	assert.Equal(t, 1, s.Count())
}

func TestStorage_OpenHandlesBlockShifts(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	for i := range 3 {
		_, err := s.AddBytes(pattern(4, byte(i)))
		require.NoError(t, err)
	}

	h, err := s.Open(1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, s.OpenHandles())

	require.ErrorIs(t, s.Remove(0), types.ErrState)
	require.ErrorIs(t, s.Remove(1), types.ErrState)
	_, err = s.Insert(1)
	require.ErrorIs(t, err, types.ErrState)
	require.ErrorIs(t, s.Swap(0, 1), types.ErrState)
	require.ErrorIs(t, s.Clear(1), types.ErrState)
	require.ErrorIs(t, s.Load(), types.ErrState)
	assert.Equal(t, 3, s.Count())

	// Streams above every open handle may still move.
	require.NoError(t, s.Remove(2))
	require.NoError(t, s.Clear(0))

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Empty(t, s.OpenHandles())
	require.NoError(t, s.Remove(0))
	assert.Equal(t, [][]byte{pattern(4, 1)}, readAllStreams(t, s))
}

func TestStorage_Capacity(t *testing.T) {
	s, m := newMemStorage(t, Options{ClusterSize: 4, MaxClusters: 2})

	_, err := s.AddBytes(pattern(9, 0))
	require.ErrorIs(t, err, types.ErrCapacity)
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, int64(format.HeaderSize), m.Size())

	_, err = s.AddBytes(pattern(8, 0))
	require.NoError(t, err)
	require.ErrorIs(t, s.AppendBytes(0, []byte{1}), types.ErrCapacity)

	got, err := s.ReadAll(0)
	require.NoError(t, err)
	assert.Equal(t, pattern(8, 0), got)
}

func TestStorage_CachePoliciesAgree(t *testing.T) {
	policies := []CachePolicy{CacheNone, CacheRemember}
	var baseline [][]byte
	for _, lp := range policies {
		for _, cp := range policies {
			t.Run(fmt.Sprintf("listing=%v content=%v", lp, cp), func(t *testing.T) {
				s, m := newMemStorage(t, Options{ClusterSize: 8, ListingCache: lp, ContentCache: cp})
				assert.Equal(t, lp, s.ListingCachePolicy())
				assert.Equal(t, cp, s.ContentCachePolicy())

				for i := range 4 {
					_, err := s.AddBytes(pattern(5+i*7, byte(i)))
					require.NoError(t, err)
				}
				_ = readAllStreams(t, s)
				require.NoError(t, s.AppendBytes(1, []byte("tail")))
				require.NoError(t, s.Swap(0, 3))
				require.NoError(t, s.Remove(2))
				h, err := s.Open(0)
				require.NoError(t, err)
				_, err = h.WriteAt([]byte("XY"), 1)
				require.NoError(t, err)
				require.NoError(t, h.Close())

				// Mutating a returned slice never leaks into later reads.
				first, err := s.ReadAll(0)
				require.NoError(t, err)
				first[0] ^= 0xFF

				got := readAllStreams(t, s)
				assert.Equal(t, got, readAllStreams(t, reopen(t, m, Options{})))
				if baseline == nil {
					baseline = got
				}
				assert.Equal(t, baseline, got)
			})
		}
	}
}

func TestStorage_HandleSurvivesRelocation(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	_, err := s.AddBytes(pattern(8, 0x00)) // clusters 0,1
	require.NoError(t, err)
	_, err = s.AddBytes(pattern(8, 0x10)) // clusters 2,3
	require.NoError(t, err)
	_, err = s.AddBytes(pattern(4, 0x20)) // cluster 4
	require.NoError(t, err)

	h, err := s.Open(1)
	require.NoError(t, err)
	defer h.Close()
	buf := make([]byte, 8)
	_, err = h.ReadAt(buf, 0)
	require.NoError(t, err)

	require.NoError(t, s.Clear(0))
	assert.Equal(t, 3, s.ClusterCount())

	l, err := s.Listing(1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), l.Start)
	assert.Equal(t, int32(1), l.End)

	clear(buf)
	n, err := h.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, pattern(8, 0x10), buf)

	got, err := s.ReadAll(2)
	require.NoError(t, err)
	assert.Equal(t, pattern(4, 0x20), got)
}

func TestStorage_ClusterIntrospection(t *testing.T) {
	s, _ := newMemStorage(t, Options{ClusterSize: 4})
	_, err := s.AddBytes([]byte("abcdef"))
	require.NoError(t, err)

	c0, err := s.Cluster(0)
	require.NoError(t, err)
	assert.Equal(t, format.TraitUsed|format.TraitStart, c0.Traits)
	assert.Equal(t, format.NilCluster, c0.Prev)
	assert.Equal(t, int32(1), c0.Next)
	assert.Equal(t, []byte("abcd"), c0.Data)

	c1, err := s.Cluster(1)
	require.NoError(t, err)
	assert.Equal(t, format.TraitUsed|format.TraitEnd, c1.Traits)
	assert.Equal(t, int32(0), c1.Prev)
	assert.Equal(t, []byte{'e', 'f', 0, 0}, c1.Data)
}

func TestStorage_FileMedium(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.ck")
	m, err := medium.OpenFile(path, medium.FlushAuto)
	require.NoError(t, err)

	s, err := New(m, Options{ClusterSize: 64})
	require.NoError(t, err)
	want := [][]byte{bytes.Repeat([]byte("a"), 100), []byte("b"), {}}
	for _, p := range want {
		_, err := s.AddBytes(p)
		require.NoError(t, err)
	}
	require.NoError(t, s.Remove(1))
	want = append(want[:1], want[2:]...)
	require.NoError(t, s.Flush(context.Background()))
	require.NoError(t, m.Close())

	m, err = medium.OpenFile(path, medium.FlushAuto)
	require.NoError(t, err)
	defer m.Close()
	s, err = New(m, Options{})
	require.NoError(t, err)
	assert.Equal(t, want, readAllStreams(t, s))
}
