package cluster

import (
	"slices"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// Add appends an empty stream at index Count and opens it. No clusters are
// allocated until bytes are written.
func (s *Storage) Add() (*Stream, error) {
	return s.Insert(s.Count())
}

// Insert creates an empty stream at index, shifting streams [index, Count)
// up by one, and opens it.
func (s *Storage) Insert(index int) (*Stream, error) {
	if index < 0 || index > s.Count() {
		return nil, types.Preconditionf("insert index %d out of range [0, %d]", index, s.Count())
	}
	if err := s.checkShift(index, "insert"); err != nil {
		return nil, err
	}
	if err := s.insertListing(index, format.EmptyListing); err != nil {
		return nil, err
	}
	s.log.Debug("stream inserted", "index", index, "count", s.Count())
	return s.newStream(index), nil
}

// Open returns a handle on stream index.
func (s *Storage) Open(index int) (*Stream, error) {
	if err := types.CheckIndex(index, s.Count()); err != nil {
		return nil, err
	}
	return s.newStream(index), nil
}

// Remove frees every cluster of stream index and deletes its listing,
// shifting streams above it down by one.
func (s *Storage) Remove(index int) error {
	if err := types.CheckIndex(index, s.Count()); err != nil {
		return err
	}
	if err := s.checkShift(index, "remove"); err != nil {
		return err
	}
	l, err := s.listing(index)
	if err != nil {
		return err
	}
	chain, err := s.walk(index, l)
	if err != nil {
		return err
	}
	if err := s.deleteListing(index); err != nil {
		return err
	}
	if err := s.release(chain); err != nil {
		return err
	}
	s.log.Debug("stream removed", "index", index, "clusters", len(chain), "count", s.Count())
	return nil
}

// Swap exchanges the directory entries of streams i and j. No cluster data
// moves.
func (s *Storage) Swap(i, j int) error {
	if err := types.CheckIndex(i, s.Count()); err != nil {
		return err
	}
	if err := types.CheckIndex(j, s.Count()); err != nil {
		return err
	}
	if i == j {
		return nil
	}
	for _, k := range []int{i, j} {
		if s.open[k] > 0 {
			return types.Statef("swap: stream %d has an open handle", k)
		}
	}
	if err := s.swapListings(i, j); err != nil {
		return err
	}
	s.log.Debug("streams swapped", "i", i, "j", j)
	return nil
}

// Clear frees every cluster of stream index and leaves it as an empty stream
// at the same index.
func (s *Storage) Clear(index int) error {
	if err := types.CheckIndex(index, s.Count()); err != nil {
		return err
	}
	if s.open[index] > 0 {
		return types.Statef("clear: stream %d has an open handle", index)
	}
	l, err := s.listing(index)
	if err != nil {
		return err
	}
	chain, err := s.walk(index, l)
	if err != nil {
		return err
	}
	s.putListing(index, format.EmptyListing)
	s.content.Delete(index)
	s.version++
	if err := s.release(chain); err != nil {
		return err
	}
	s.log.Debug("stream cleared", "index", index, "clusters", len(chain))
	return nil
}

// ReadAll returns the full contents of stream index. The returned slice is
// owned by the caller.
func (s *Storage) ReadAll(index int) ([]byte, error) {
	if err := types.CheckIndex(index, s.Count()); err != nil {
		return nil, err
	}
	if b, ok := s.content.Get(index); ok {
		return slices.Clone(b), nil
	}
	l, err := s.listing(index)
	if err != nil {
		return nil, err
	}
	chain, err := s.walk(index, l)
	if err != nil {
		return nil, err
	}
	out := make([]byte, l.Size)
	s.copyOut(chain, 0, out)
	s.content.Put(index, slices.Clone(out))
	return out, nil
}

// AppendBytes appends p to the end of stream index.
func (s *Storage) AppendBytes(index int, p []byte) error {
	if err := types.CheckIndex(index, s.Count()); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	l, err := s.listing(index)
	if err != nil {
		return err
	}
	chain, err := s.walk(index, l)
	if err != nil {
		return err
	}
	chain, err = s.setLength(index, l, chain, l.Size+uint64(len(p)))
	if err != nil {
		return err
	}
	s.copyIn(chain, int64(l.Size), p)
	s.content.Delete(index)
	return nil
}

// AddBytes appends a new stream holding a copy of p and returns its index.
func (s *Storage) AddBytes(p []byte) (int, error) {
	index := s.Count()
	if err := s.insertListing(index, format.EmptyListing); err != nil {
		return 0, err
	}
	if err := s.AppendBytes(index, p); err != nil {
		if derr := s.deleteListing(index); derr != nil {
			s.log.Warn("failed to roll back added stream", "index", index, "error", derr)
		}
		return 0, err
	}
	s.log.Debug("stream added", "index", index, "size", len(p))
	return index, nil
}

// checkShift rejects a structural change at index while a handle is open on
// index or any stream above it.
func (s *Storage) checkShift(index int, op string) error {
	for k, n := range s.open {
		if n > 0 && k >= index {
			return types.Statef("%s at %d: stream %d has an open handle", op, index, k)
		}
	}
	return nil
}
