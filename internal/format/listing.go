package format

import "fmt"

// Listing is a directory entry: the head and tail of a stream's cluster
// chain and its logical length in bytes.
type Listing struct {
	Start int32
	End   int32
	Size  uint64
}

// EmptyListing describes a stream with no clusters.
var EmptyListing = Listing{Start: NilCluster, End: NilCluster}

// IsEmpty reports whether the listing owns no clusters.
func (l Listing) IsEmpty() bool {
	return l.Start == NilCluster
}

// ParseListing decodes a directory entry from b.
func ParseListing(b []byte) (Listing, error) {
	if len(b) < ListingSize {
		return Listing{}, fmt.Errorf("listing: %w", ErrTruncated)
	}
	return Listing{
		Start: ReadI32(b, ListingStartOffset),
		End:   ReadI32(b, ListingEndOffset),
		Size:  ReadU64(b, ListingSizeOffset),
	}, nil
}

// Put encodes l into the first ListingSize bytes of b.
func (l Listing) Put(b []byte) {
	PutI32(b, ListingStartOffset, l.Start)
	PutI32(b, ListingEndOffset, l.End)
	PutU64(b, ListingSizeOffset, l.Size)
}

// Check reports a structural problem with l for a medium of totalClusters
// clusters, or nil.
func (l Listing) Check(totalClusters uint32) error {
	if l.Start == NilCluster || l.End == NilCluster {
		if l.Start != l.End {
			return fmt.Errorf("half-empty chain (start=%d end=%d)", l.Start, l.End)
		}
		if l.Size != 0 {
			return fmt.Errorf("empty chain with logical size %d", l.Size)
		}
		return nil
	}
	if !InRange(l.Start, totalClusters) {
		return fmt.Errorf("start cluster %d outside [0, %d)", l.Start, totalClusters)
	}
	if !InRange(l.End, totalClusters) {
		return fmt.Errorf("end cluster %d outside [0, %d)", l.End, totalClusters)
	}
	if l.Size == 0 {
		return fmt.Errorf("chain %d..%d with zero logical size", l.Start, l.End)
	}
	return nil
}

// InRange reports whether i addresses one of totalClusters clusters.
func InRange(i int32, totalClusters uint32) bool {
	return i >= 0 && uint32(i) < totalClusters
}

// LinkInRange reports whether link is NilCluster or addresses a cluster.
func LinkInRange(link int32, totalClusters uint32) bool {
	return link == NilCluster || InRange(link, totalClusters)
}
