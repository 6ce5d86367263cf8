package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/joshuapare/clusterkit/internal/buf"
	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/medium"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// Storage multiplexes many variable-length streams inside one medium.
//
// Storage is NOT thread-safe. Only one goroutine should use a Storage and
// the streams opened from it at a time.
type Storage struct {
	m    medium.Medium
	hdr  format.Header
	opts Options
	log  *slog.Logger

	listings cache[format.Listing]
	content  cache[[]byte]
	free     freePool

	// open counts live handles per stream index.
	open map[int]int

	// version changes whenever cluster indices of any chain may have moved,
	// so handles know to re-walk their chain.
	version uint64
}

// New returns a Storage over m. An empty medium is initialized with a fresh
// header; otherwise the existing header is loaded and validated.
func New(m medium.Medium, opts Options) (*Storage, error) {
	if m == nil {
		return nil, types.Preconditionf("nil medium")
	}
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	s := &Storage{
		m:        m,
		opts:     opts,
		log:      opts.Logger,
		listings: newCache[format.Listing](opts.ListingCache),
		content:  newCache[[]byte](opts.ContentCache),
		open:     make(map[int]int),
		version:  1,
	}
	if m.Size() == 0 {
		if err := s.initialize(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) initialize() error {
	if err := s.m.Resize(format.HeaderSize); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	s.hdr = format.NewHeader(s.opts.ClusterSize)
	s.writeHeader()
	s.log.Debug("storage initialized", "clusterSize", s.hdr.ClusterSize)
	return nil
}

// Load re-reads the header from the medium, validates it against the medium
// length and drops every cached directory entry and stream.
//
// Chains are not traversed here; a broken chain is reported when its stream
// is first accessed.
func (s *Storage) Load() error {
	if len(s.open) > 0 {
		return types.Statef("cannot reload storage with %d open stream handles", len(s.open))
	}
	hdr, err := format.ParseHeader(s.m.Bytes())
	if err != nil {
		return s.corrupt(types.WrapCorrupt(err, "storage header"))
	}
	if p := hdr.Validate(s.m.Size()); p != nil {
		return s.corrupt(&types.Error{Kind: types.ErrKindCorrupt, Msg: "storage header", Err: p})
	}
	s.hdr = hdr
	s.listings.Reset()
	s.content.Reset()
	s.scanFree()
	s.version++
	s.log.Debug("storage loaded",
		"clusterSize", hdr.ClusterSize,
		"clusters", hdr.TotalClusters,
		"streams", hdr.ListingCount,
		"free", s.free.len())
	return nil
}

// scanFree rebuilds the free pool from the trait bytes. Undefined trait
// bytes are left for traversal to report.
func (s *Storage) scanFree() {
	s.free.reset()
	data := s.m.Bytes()
	for i := int32(0); uint32(i) < s.hdr.TotalClusters; i++ {
		if format.Traits(data[format.ClusterOffset(s.hdr, i)]) == format.TraitFree {
			s.free.add(i)
		}
	}
}

func (s *Storage) writeHeader() {
	s.hdr.Put(s.m.Bytes())
	s.m.MarkDirty(0, format.HeaderSize)
}

func (s *Storage) corrupt(err error) error {
	s.log.Warn("corrupt data detected", "error", err)
	return err
}

func (s *Storage) corruptf(msg string, args ...any) error {
	return s.corrupt(types.Corruptf(msg, args...))
}

// -----------------------------------------------------------------------------
// Introspection
// -----------------------------------------------------------------------------

// Count returns the number of streams.
func (s *Storage) Count() int { return int(s.hdr.ListingCount) }

// Header returns a copy of the current header.
func (s *Storage) Header() format.Header { return s.hdr }

// ClusterSize returns the payload size of one cluster.
func (s *Storage) ClusterSize() int { return int(s.hdr.ClusterSize) }

// ClusterCount returns the number of clusters physically present.
func (s *Storage) ClusterCount() int { return int(s.hdr.TotalClusters) }

// MetadataLength returns the length of the header plus the directory.
func (s *Storage) MetadataLength() int64 {
	return int64(format.ClusterRegionOffset(s.hdr.ListingCount))
}

// Medium returns the backing medium.
func (s *Storage) Medium() medium.Medium { return s.m }

// ListingCachePolicy returns the directory cache policy.
func (s *Storage) ListingCachePolicy() CachePolicy { return s.opts.ListingCache }

// ContentCachePolicy returns the stream content cache policy.
func (s *Storage) ContentCachePolicy() CachePolicy { return s.opts.ContentCache }

// FreeClusters returns the indices of clusters in the free pool, ascending.
func (s *Storage) FreeClusters() []int32 {
	return slices.Clone(s.free.ids)
}

// OpenHandles returns the indices that currently have open stream handles.
func (s *Storage) OpenHandles() []int {
	return slices.Sorted(maps.Keys(s.open))
}

// Listing returns directory entry i.
func (s *Storage) Listing(i int) (format.Listing, error) {
	if err := types.CheckIndex(i, s.Count()); err != nil {
		return format.Listing{}, err
	}
	return s.listing(i)
}

// Listings returns every directory entry in index order.
func (s *Storage) Listings() ([]format.Listing, error) {
	out := make([]format.Listing, s.Count())
	for i := range out {
		l, err := s.listing(i)
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}

// Cluster is a decoded copy of one cluster.
type Cluster struct {
	Index  int32
	Traits format.Traits
	Prev   int32
	Next   int32
	Data   []byte
}

// Cluster returns a copy of cluster i. Undefined traits and out-of-range
// links are reported as corruption.
func (s *Storage) Cluster(i int) (Cluster, error) {
	if err := types.CheckIndex(i, s.ClusterCount()); err != nil {
		return Cluster{}, err
	}
	id := int32(i)
	env, err := s.envelopeAt(id)
	if err != nil {
		return Cluster{}, err
	}
	return Cluster{
		Index:  id,
		Traits: env.Traits,
		Prev:   env.Prev,
		Next:   env.Next,
		Data:   slices.Clone(s.payload(id)),
	}, nil
}

// Flush persists pending changes of the medium.
func (s *Storage) Flush(ctx context.Context) error {
	return s.m.Flush(ctx)
}

// -----------------------------------------------------------------------------
// Cluster envelopes and payloads
// -----------------------------------------------------------------------------

func (s *Storage) envelopeAt(i int32) (format.Envelope, error) {
	if !format.InRange(i, s.hdr.TotalClusters) {
		return format.Envelope{}, s.corruptf("cluster %d outside [0, %d)", i, s.hdr.TotalClusters)
	}
	b, ok := buf.Slice(s.m.Bytes(), format.ClusterOffset(s.hdr, i), format.EnvelopeSize)
	if !ok {
		return format.Envelope{}, s.corruptf("cluster %d lies beyond the medium", i)
	}
	env, err := format.ParseEnvelope(b)
	if err != nil {
		return format.Envelope{}, s.corrupt(types.WrapCorrupt(err, "cluster %d", i))
	}
	if err := env.Check(s.hdr.TotalClusters); err != nil {
		return format.Envelope{}, s.corruptf("cluster %d: %v", i, err)
	}
	return env, nil
}

func (s *Storage) putEnvelope(i int32, env format.Envelope) {
	off := format.ClusterOffset(s.hdr, i)
	env.Put(s.m.Bytes()[off:])
	s.m.MarkDirty(off, format.EnvelopeSize)
}

// payload returns the payload window of cluster i, aliasing the medium.
func (s *Storage) payload(i int32) []byte {
	off := format.ClusterOffset(s.hdr, i) + format.EnvelopeSize
	return s.m.Bytes()[off : off+int(s.hdr.ClusterSize)]
}

func (s *Storage) markPayloadDirty(i int32, from, n int) {
	s.m.MarkDirty(format.ClusterOffset(s.hdr, i)+format.EnvelopeSize+from, n)
}

// zeroPayload clears cluster i's payload from offset from to its end.
func (s *Storage) zeroPayload(i int32, from int) {
	p := s.payload(i)
	if from >= len(p) {
		return
	}
	clear(p[from:])
	s.markPayloadDirty(i, from, len(p)-from)
}

// walk traverses a stream's chain forward from its start and returns the
// cluster indices in order. The traversal visits at most TotalClusters
// clusters and reports as corruption: links outside the cluster table,
// revisited clusters, broken back-links, misplaced Start/End traits, free
// clusters in a chain and a chain length that disagrees with the listing.
func (s *Storage) walk(index int, l format.Listing) ([]int32, error) {
	total := s.hdr.TotalClusters
	if err := l.Check(total); err != nil {
		return nil, s.corruptf("stream %d: %v", index, err)
	}
	if l.IsEmpty() {
		return nil, nil
	}
	cs := int64(s.hdr.ClusterSize)
	expected := buf.CeilDiv(int64(l.Size), cs)
	if l.Size > uint64(total)*uint64(cs) {
		return nil, s.corruptf("stream %d: logical size %d exceeds the %d clusters present", index, l.Size, total)
	}

	chain := make([]int32, 0, expected)
	visited := make(map[int32]struct{}, expected)
	prev, cur := format.NilCluster, l.Start
	for {
		if _, seen := visited[cur]; seen || uint32(len(chain)) >= total {
			return nil, s.corruptf("stream %d: cycle at cluster %d", index, cur)
		}
		visited[cur] = struct{}{}

		env, err := s.envelopeAt(cur)
		if err != nil {
			return nil, fmt.Errorf("stream %d: %w", index, err)
		}
		if !env.Traits.Has(format.TraitUsed) {
			return nil, s.corruptf("stream %d: cluster %d is not in use (%v)", index, cur, env.Traits)
		}
		if env.Prev != prev {
			return nil, s.corruptf("stream %d: cluster %d links back to %d, expected %d", index, cur, env.Prev, prev)
		}
		if env.Traits.Has(format.TraitStart) != (prev == format.NilCluster) {
			return nil, s.corruptf("stream %d: cluster %d has misplaced Start trait", index, cur)
		}
		chain = append(chain, cur)
		if int64(len(chain)) > expected {
			return nil, s.corruptf("stream %d: chain longer than the %d clusters its size needs", index, expected)
		}

		if env.Traits.Has(format.TraitEnd) {
			if env.Next != format.NilCluster {
				return nil, s.corruptf("stream %d: end cluster %d links forward to %d", index, cur, env.Next)
			}
			if cur != l.End {
				return nil, s.corruptf("stream %d: chain ends at %d but listing ends at %d", index, cur, l.End)
			}
			break
		}
		if env.Next == format.NilCluster {
			return nil, s.corruptf("stream %d: chain breaks at cluster %d without End trait", index, cur)
		}
		prev, cur = cur, env.Next
	}

	if int64(len(chain)) != expected {
		return nil, s.corruptf("stream %d: chain has %d clusters, logical size %d needs %d",
			index, len(chain), l.Size, expected)
	}
	return chain, nil
}

// copyOut reads len(p) bytes at logical offset off of a chain.
func (s *Storage) copyOut(chain []int32, off int64, p []byte) {
	cs := int64(s.hdr.ClusterSize)
	for len(p) > 0 {
		ci, within := off/cs, off%cs
		n := copy(p, s.payload(chain[ci])[within:])
		p = p[n:]
		off += int64(n)
	}
}

// copyIn writes p at logical offset off of a chain.
func (s *Storage) copyIn(chain []int32, off int64, p []byte) {
	cs := int64(s.hdr.ClusterSize)
	for len(p) > 0 {
		ci, within := off/cs, off%cs
		n := copy(s.payload(chain[ci])[within:], p)
		s.markPayloadDirty(chain[ci], int(within), n)
		p = p[n:]
		off += int64(n)
	}
}
