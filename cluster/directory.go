package cluster

import (
	"fmt"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// listing returns directory entry i, consulting the listing cache first.
// The index must already be validated.
func (s *Storage) listing(i int) (format.Listing, error) {
	if l, ok := s.listings.Get(i); ok {
		return l, nil
	}
	off := format.ListingOffset(i)
	data := s.m.Bytes()
	if off+format.ListingSize > len(data) {
		return format.Listing{}, s.corruptf("listing %d at 0x%X lies beyond the medium (%d bytes)", i, off, len(data))
	}
	l, err := format.ParseListing(data[off:])
	if err != nil {
		return format.Listing{}, s.corrupt(types.WrapCorrupt(err, "listing %d", i))
	}
	s.listings.Put(i, l)
	return l, nil
}

func (s *Storage) putListing(i int, l format.Listing) {
	off := format.ListingOffset(i)
	l.Put(s.m.Bytes()[off:])
	s.m.MarkDirty(off, format.ListingSize)
	s.listings.Put(i, l)
}

// insertListing opens a slot at index i, shifting entries [i, N) and the
// whole cluster region up by one listing.
func (s *Storage) insertListing(i int, l format.Listing) error {
	if s.hdr.ListingCount == ^uint32(0) {
		return types.Capacityf("directory is full (%d listings)", s.hdr.ListingCount)
	}
	oldSize := s.m.Size()
	if err := s.m.Resize(oldSize + format.ListingSize); err != nil {
		return fmt.Errorf("insert listing %d: %w", i, err)
	}
	data := s.m.Bytes()
	off := format.ListingOffset(i)
	copy(data[off+format.ListingSize:], data[off:oldSize])
	l.Put(data[off:])
	s.m.MarkDirty(off, len(data)-off)

	s.hdr.ListingCount++
	s.writeHeader()
	s.listings.Reset()
	s.content.Reset()
	return nil
}

// deleteListing closes the slot at index i, shifting entries (i, N) and the
// cluster region down by one listing. On failure the directory is restored.
func (s *Storage) deleteListing(i int) error {
	oldSize := s.m.Size()
	off := format.ListingOffset(i)
	data := s.m.Bytes()
	var saved [format.ListingSize]byte
	copy(saved[:], data[off:])
	copy(data[off:], data[off+format.ListingSize:oldSize])
	s.hdr.ListingCount--
	s.writeHeader()

	if err := s.m.Resize(oldSize - format.ListingSize); err != nil {
		data = s.m.Bytes()
		copy(data[off+format.ListingSize:oldSize], data[off:oldSize-format.ListingSize])
		copy(data[off:], saved[:])
		s.hdr.ListingCount++
		s.writeHeader()
		s.m.MarkDirty(off, int(oldSize)-off)
		return fmt.Errorf("remove listing %d: %w", i, err)
	}
	s.m.MarkDirty(off, int(s.m.Size())-off)
	s.listings.Reset()
	s.content.Reset()
	return nil
}

// swapListings exchanges entries i and j. Chains are untouched.
func (s *Storage) swapListings(i, j int) error {
	li, err := s.listing(i)
	if err != nil {
		return err
	}
	lj, err := s.listing(j)
	if err != nil {
		return err
	}
	s.putListing(i, lj)
	s.putListing(j, li)

	ci, okI := s.content.Get(i)
	cj, okJ := s.content.Get(j)
	s.content.Delete(i)
	s.content.Delete(j)
	if okI {
		s.content.Put(j, ci)
	}
	if okJ {
		s.content.Put(i, cj)
	}
	return nil
}

// listingOwning returns the index of the listing whose Start (or End, when
// end is set) is cluster c, or -1.
func (s *Storage) listingOwning(c int32, end bool) (int, error) {
	for i := range s.Count() {
		l, err := s.listing(i)
		if err != nil {
			return -1, err
		}
		if (!end && l.Start == c) || (end && l.End == c) {
			return i, nil
		}
	}
	return -1, nil
}
