package cluster

import (
	"fmt"

	"github.com/joshuapare/clusterkit/internal/buf"
	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// allocate hands out k clusters, lowest free indices first, then grows the
// cluster region. The medium is resized before anything is taken from the
// pool so a failed resize leaves the storage untouched. Reused payloads are
// zeroed; grown ones are zero-filled by the medium.
func (s *Storage) allocate(k int) ([]int32, error) {
	if k <= 0 {
		return nil, nil
	}
	grow := max(k-s.free.len(), 0)
	if grow > 0 {
		total := uint64(s.hdr.TotalClusters) + uint64(grow)
		if total > uint64(s.opts.MaxClusters) {
			return nil, types.Capacityf("need %d more clusters, %d of %d in use with %d free",
				grow, s.hdr.TotalClusters, s.opts.MaxClusters, s.free.len())
		}
		next := s.hdr
		next.TotalClusters = uint32(total)
		if err := s.m.Resize(format.MediumSize(next)); err != nil {
			return nil, fmt.Errorf("grow cluster region: %w", err)
		}
	}

	ids := make([]int32, 0, k)
	for len(ids) < k {
		id, ok := s.free.popLowest()
		if !ok {
			break
		}
		s.zeroPayload(id, 0)
		ids = append(ids, id)
	}
	for len(ids) < k {
		ids = append(ids, int32(s.hdr.TotalClusters))
		s.hdr.TotalClusters++
	}
	if grow > 0 {
		s.writeHeader()
		s.log.Debug("cluster region grown", "clusters", s.hdr.TotalClusters, "added", grow)
	}
	return ids, nil
}

// release returns clusters to the free pool and reclaims space according to
// the compaction policy.
func (s *Storage) release(ids []int32) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		s.putEnvelope(id, format.FreeEnvelope)
		s.free.add(id)
	}
	return s.reclaim()
}

// reclaim shrinks the cluster region. TrimTail drops trailing free clusters
// only; CompactOnFree first moves the highest used clusters into the lowest
// free slots until no free cluster remains.
func (s *Storage) reclaim() error {
	oldTotal := s.hdr.TotalClusters
	total := oldTotal
	moved := 0
	for s.free.len() > 0 && total > 0 {
		last := int32(total - 1)
		if s.free.remove(last) {
			total--
			continue
		}
		if s.opts.Compaction != CompactOnFree {
			break
		}
		dst, _ := s.free.popLowest()
		if err := s.relocate(last, dst); err != nil {
			s.free.add(dst)
			_ = s.shrinkTo(oldTotal, total)
			return err
		}
		moved++
		total--
	}
	if total == oldTotal {
		return nil
	}
	if err := s.shrinkTo(oldTotal, total); err != nil {
		return err
	}
	s.log.Debug("cluster region reclaimed", "clusters", total, "dropped", oldTotal-total, "relocated", moved)
	return nil
}

// shrinkTo truncates the cluster region from oldTotal to total clusters.
// Every cluster in [total, oldTotal) must already be free. When the medium
// cannot shrink they stay in the pool as free clusters.
func (s *Storage) shrinkTo(oldTotal, total uint32) error {
	if total == oldTotal {
		return nil
	}
	s.hdr.TotalClusters = total
	s.writeHeader()
	if err := s.m.Resize(format.MediumSize(s.hdr)); err != nil {
		s.hdr.TotalClusters = oldTotal
		s.writeHeader()
		for id := total; id < oldTotal; id++ {
			s.free.add(int32(id))
		}
		return fmt.Errorf("shrink cluster region: %w", err)
	}
	return nil
}

// relocate moves used cluster src into free slot dst, rewiring its
// neighbours and the listing that starts or ends at src. src becomes free.
func (s *Storage) relocate(src, dst int32) error {
	env, err := s.envelopeAt(src)
	if err != nil {
		return err
	}
	if !env.Traits.Has(format.TraitUsed) {
		return s.corruptf("relocate: cluster %d is not in use (%v)", src, env.Traits)
	}
	if env.Prev != format.NilCluster {
		prev, err := s.envelopeAt(env.Prev)
		if err != nil {
			return err
		}
		prev.Next = dst
		s.putEnvelope(env.Prev, prev)
	}
	if env.Next != format.NilCluster {
		next, err := s.envelopeAt(env.Next)
		if err != nil {
			return err
		}
		next.Prev = dst
		s.putEnvelope(env.Next, next)
	}
	if env.Traits.Has(format.TraitStart) {
		if err := s.repointListing(src, dst, false); err != nil {
			return err
		}
	}
	if env.Traits.Has(format.TraitEnd) {
		if err := s.repointListing(src, dst, true); err != nil {
			return err
		}
	}

	copy(s.payload(dst), s.payload(src))
	s.markPayloadDirty(dst, 0, int(s.hdr.ClusterSize))
	s.putEnvelope(dst, env)
	s.putEnvelope(src, format.FreeEnvelope)
	s.version++
	return nil
}

func (s *Storage) repointListing(src, dst int32, end bool) error {
	i, err := s.listingOwning(src, end)
	if err != nil {
		return err
	}
	if i < 0 {
		return s.corruptf("relocate: no listing references cluster %d", src)
	}
	l, err := s.listing(i)
	if err != nil {
		return err
	}
	if end {
		l.End = dst
	} else {
		l.Start = dst
	}
	s.putListing(i, l)
	return nil
}

// setLength resizes stream index to n bytes. chain must be the stream's
// current, validated chain. The returned chain reflects the new length.
// Bytes between the old and the new length read as zero.
func (s *Storage) setLength(index int, l format.Listing, chain []int32, n uint64) ([]int32, error) {
	cs := uint64(s.hdr.ClusterSize)
	if n > uint64(s.opts.MaxClusters)*cs {
		return nil, types.Capacityf("stream %d: length %d exceeds storage capacity", index, n)
	}
	need := int(buf.CeilDiv(int64(n), int64(cs)))
	have := len(chain)

	switch {
	case need > have:
		return s.grow(index, l, chain, need, n)
	case need < have:
		return s.shrink(index, l, chain, need, n)
	}

	if n == l.Size {
		return chain, nil
	}
	if n < l.Size && n%cs != 0 {
		s.zeroPayload(chain[need-1], int(n%cs))
	} else if n > l.Size && l.Size%cs != 0 {
		s.zeroPayload(chain[have-1], int(l.Size%cs))
	}
	l.Size = n
	s.putListing(index, l)
	s.content.Delete(index)
	return chain, nil
}

func (s *Storage) grow(index int, l format.Listing, chain []int32, need int, n uint64) ([]int32, error) {
	have := len(chain)
	ids, err := s.allocate(need - have)
	if err != nil {
		return nil, err
	}
	cs := uint64(s.hdr.ClusterSize)
	if have > 0 && l.Size%cs != 0 {
		s.zeroPayload(chain[have-1], int(l.Size%cs))
	}

	prev := format.NilCluster
	if have > 0 {
		prev = chain[have-1]
		env, err := s.envelopeAt(prev)
		if err != nil {
			return nil, err
		}
		env.Traits &^= format.TraitEnd
		env.Next = ids[0]
		s.putEnvelope(prev, env)
	}
	for k, id := range ids {
		env := format.Envelope{Traits: format.TraitUsed, Prev: prev, Next: format.NilCluster}
		if prev == format.NilCluster {
			env.Traits |= format.TraitStart
		}
		if k+1 < len(ids) {
			env.Next = ids[k+1]
		} else {
			env.Traits |= format.TraitEnd
		}
		s.putEnvelope(id, env)
		prev = id
	}

	chain = append(chain, ids...)
	if have == 0 {
		l.Start = chain[0]
	}
	l.End = chain[len(chain)-1]
	l.Size = n
	s.putListing(index, l)
	s.content.Delete(index)
	s.version++
	return chain, nil
}

func (s *Storage) shrink(index int, l format.Listing, chain []int32, need int, n uint64) ([]int32, error) {
	dropped := chain[need:]
	if need == 0 {
		l = format.EmptyListing
	} else {
		tail := chain[need-1]
		env, err := s.envelopeAt(tail)
		if err != nil {
			return nil, err
		}
		env.Traits |= format.TraitEnd
		env.Next = format.NilCluster
		s.putEnvelope(tail, env)
		if cs := uint64(s.hdr.ClusterSize); n%cs != 0 {
			s.zeroPayload(tail, int(n%cs))
		}
		l.End = tail
		l.Size = n
	}
	s.putListing(index, l)
	s.content.Delete(index)
	s.version++

	before := s.version
	if err := s.release(dropped); err != nil {
		return nil, err
	}
	if s.version == before {
		return chain[:need:need], nil
	}
	l, err := s.listing(index)
	if err != nil {
		return nil, err
	}
	return s.walk(index, l)
}
