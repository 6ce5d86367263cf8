package paged

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/clusterkit/cluster"
	"github.com/joshuapare/clusterkit/medium"
	"github.com/joshuapare/clusterkit/pkg/types"
	"github.com/joshuapare/clusterkit/serial"
)

// 32-byte pages leave 28 bytes for items: two "item-N" strings per page.
const testPageBytes = 32

func items(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("item-%d", i)
	}
	return out
}

func newClusteredList(t *testing.T, m *medium.Memory) (*List[string], *cluster.Storage) {
	t.Helper()
	s, err := cluster.New(m, cluster.Options{ClusterSize: 16})
	require.NoError(t, err)
	l, err := NewClustered[string](s, serial.UTF8, testPageBytes, Options{})
	require.NoError(t, err)
	return l, s
}

func TestClustered_RoundTrip(t *testing.T) {
	m := medium.NewMemory(nil)
	l, s := newClusteredList(t, m)
	require.True(t, l.RequiresLoad())
	_, err := l.ReadRange(0, 0)
	require.ErrorIs(t, err, types.ErrState)
	require.ErrorIs(t, l.AddRange([]string{"x"}), types.ErrState)

	require.NoError(t, l.Load())
	require.False(t, l.RequiresLoad())
	require.NoError(t, l.AddRange(items(10)))
	require.NoError(t, l.Flush())
	assert.Equal(t, 5, s.Count(), "one stream per page")

	reloaded, _ := newClusteredList(t, medium.NewMemory(m.Snapshot()))
	require.NoError(t, reloaded.Load())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 10, reloaded.Count())
	got, err := reloaded.ReadRange(0, 10)
	require.NoError(t, err)
	assert.Equal(t, items(10), got)

	pages := reloaded.Pages()
	require.Len(t, pages, 5)
	assert.Equal(t, 20, pages[0].Size)
	assert.Equal(t, Loaded, pages[0].State)
}

func TestClustered_UpdateOverflowIsRejected(t *testing.T) {
	l, _ := newClusteredList(t, medium.NewMemory(nil))
	require.NoError(t, l.Load())
	require.NoError(t, l.AddRange(items(4)))

	err := l.UpdateRange(1, []string{"item-X", "a-much-longer-item"})
	require.ErrorIs(t, err, types.ErrUnsupported)
	got, err := l.ReadRange(0, 4)
	require.NoError(t, err)
	assert.Equal(t, items(4), got, "a rejected update changes nothing")

	require.NoError(t, l.UpdateRange(1, []string{"item-X", "it"}))
	got, err = l.ReadRange(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"item-0", "item-X", "it", "item-3"}, got)
}

func TestClustered_ItemLargerThanPage(t *testing.T) {
	l, s := newClusteredList(t, medium.NewMemory(nil))
	require.NoError(t, l.Load())

	err := l.AddRange([]string{"ok", strings.Repeat("z", testPageBytes)})
	require.ErrorIs(t, err, types.ErrCapacity)
	assert.Equal(t, 0, l.Count())
	assert.Equal(t, 0, s.Count())
}

func TestClustered_RemoveDeletesStreams(t *testing.T) {
	m := medium.NewMemory(nil)
	l, s := newClusteredList(t, m)
	require.NoError(t, l.Load())
	require.NoError(t, l.AddRange(items(7)))
	require.NoError(t, l.RemoveRange(3, 4))
	require.NoError(t, l.Flush())

	assert.Equal(t, 2, s.Count())
	reloaded, _ := newClusteredList(t, medium.NewMemory(m.Snapshot()))
	require.NoError(t, reloaded.Load())
	got, err := reloaded.ReadRange(0, reloaded.Count())
	require.NoError(t, err)
	assert.Equal(t, items(3), got)
}

func TestClustered_CorruptPage(t *testing.T) {
	m := medium.NewMemory(nil)
	l, s := newClusteredList(t, m)
	require.NoError(t, l.Load())
	require.NoError(t, l.AddRange(items(4)))
	require.NoError(t, l.Flush())

	// Claim 9 items on page 1 while it holds only two.
	h, err := s.Open(1)
	require.NoError(t, err)
	_, err = h.WriteAt([]byte{9, 0, 0, 0}, 0)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	reloaded, _ := newClusteredList(t, medium.NewMemory(m.Snapshot()))
	require.NoError(t, reloaded.Load())
	_, err = reloaded.ReadRange(0, 2)
	require.NoError(t, err)
	_, err = reloaded.ReadRange(2, 1)
	require.ErrorIs(t, err, types.ErrCorrupt)
}

func TestClustered_Compressed(t *testing.T) {
	c, err := serial.NewCompressed[[]byte](serial.Bytes{}, 1)
	require.NoError(t, err)
	s, err := cluster.New(medium.NewMemory(nil), cluster.Options{ClusterSize: 64})
	require.NoError(t, err)
	l, err := NewClustered[[]byte](s, c, 256, Options{})
	require.NoError(t, err)
	require.NoError(t, l.Load())

	big := []byte(strings.Repeat("abc", 200))
	require.NoError(t, l.AddRange([][]byte{big, big}))
	require.Len(t, l.Pages(), 1)
	got, err := l.Read(1)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}
