// Package verify provides eager structural validation of a clustered storage
// medium. Storage itself validates chains lazily; these helpers walk
// everything at once and are used by the CLI and in tests.
package verify

import (
	"fmt"

	"github.com/joshuapare/clusterkit/internal/buf"
	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// ValidationError describes the first invariant violation found.
type ValidationError struct {
	Type    string
	Message string
	Offset  int
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap makes every ValidationError match types.ErrCorrupt.
func (e *ValidationError) Unwrap() error { return types.ErrCorrupt }

// All validates every invariant in one call.
// Returns the first error encountered, or nil if all checks pass.
func All(data []byte) error {
	if err := Header(data); err != nil {
		return err
	}
	if err := Directory(data); err != nil {
		return err
	}
	return Chains(data)
}

// Header validates the header fields against the medium length.
func Header(data []byte) error {
	hdr, err := format.ParseHeader(data)
	if err != nil {
		return &ValidationError{
			Type:    "Header",
			Message: fmt.Sprintf("medium too small: %d bytes (need %d)", len(data), format.HeaderSize),
			Offset:  -1,
		}
	}
	if p := hdr.Validate(int64(len(data))); p != nil {
		return &ValidationError{
			Type:    "Header",
			Message: p.Error(),
			Offset:  p.Offset,
			Details: map[string]any{
				"field":         p.Field,
				"clusterSize":   hdr.ClusterSize,
				"totalClusters": hdr.TotalClusters,
				"listingCount":  hdr.ListingCount,
				"mediumSize":    len(data),
			},
		}
	}
	return nil
}

// Directory validates every listing in isolation: links in range and
// emptiness consistent with the logical size.
func Directory(data []byte) error {
	hdr, err := parseValid(data)
	if err != nil {
		return err
	}
	for i := range int(hdr.ListingCount) {
		off := format.ListingOffset(i)
		l, err := format.ParseListing(data[off:])
		if err != nil {
			return &ValidationError{Type: "Directory", Message: err.Error(), Offset: off}
		}
		if err := l.Check(hdr.TotalClusters); err != nil {
			return &ValidationError{
				Type:    "Directory",
				Message: fmt.Sprintf("listing %d: %v", i, err),
				Offset:  off,
			}
		}
		if l.Size > uint64(hdr.TotalClusters)*uint64(hdr.ClusterSize) {
			return &ValidationError{
				Type:    "Directory",
				Message: fmt.Sprintf("listing %d: logical size %d exceeds the cluster region", i, l.Size),
				Offset:  off + format.ListingSizeOffset,
			}
		}
	}
	return nil
}

// Chains walks every stream's chain and checks that each cluster belongs to
// exactly one chain or is free.
func Chains(data []byte) error {
	hdr, err := parseValid(data)
	if err != nil {
		return err
	}
	owner := make([]int32, hdr.TotalClusters)
	for i := range owner {
		owner[i] = -1
	}

	for i := range int(hdr.ListingCount) {
		l, err := format.ParseListing(data[format.ListingOffset(i):])
		if err != nil {
			return &ValidationError{Type: "Chains", Message: err.Error(), Offset: format.ListingOffset(i)}
		}
		if err := walkChain(data, hdr, i, l, owner); err != nil {
			return err
		}
	}

	for c := range int32(hdr.TotalClusters) {
		off := format.ClusterOffset(hdr, c)
		env, err := format.ParseEnvelope(data[off:])
		if err != nil {
			return &ValidationError{Type: "Chains", Message: err.Error(), Offset: off}
		}
		switch {
		case owner[c] >= 0 && env.Traits == format.TraitFree:
			return &ValidationError{
				Type:    "Chains",
				Message: fmt.Sprintf("cluster %d is free but linked into stream %d", c, owner[c]),
				Offset:  off,
			}
		case owner[c] < 0 && env.Traits != format.TraitFree:
			return &ValidationError{
				Type:    "Chains",
				Message: fmt.Sprintf("cluster %d (%v) is not free and belongs to no stream", c, env.Traits),
				Offset:  off,
			}
		case owner[c] < 0 && (env.Prev != format.NilCluster || env.Next != format.NilCluster):
			return &ValidationError{
				Type:    "Chains",
				Message: fmt.Sprintf("free cluster %d carries links prev=%d next=%d", c, env.Prev, env.Next),
				Offset:  off,
			}
		}
	}
	return nil
}

func walkChain(data []byte, hdr format.Header, index int, l format.Listing, owner []int32) error {
	if err := l.Check(hdr.TotalClusters); err != nil {
		return &ValidationError{
			Type:    "Chains",
			Message: fmt.Sprintf("listing %d: %v", index, err),
			Offset:  format.ListingOffset(index),
		}
	}
	if l.IsEmpty() {
		return nil
	}
	expected := buf.CeilDiv(int64(l.Size), int64(hdr.ClusterSize))

	fail := func(off int, msg string, args ...any) error {
		return &ValidationError{
			Type:    "Chains",
			Message: fmt.Sprintf("stream %d: ", index) + fmt.Sprintf(msg, args...),
			Offset:  off,
			Details: map[string]any{"stream": index, "start": l.Start, "end": l.End, "size": l.Size},
		}
	}

	var steps int64
	prev, cur := format.NilCluster, l.Start
	for {
		off := format.ClusterOffset(hdr, cur)
		if owner[cur] == int32(index) {
			return fail(off, "cycle at cluster %d", cur)
		}
		if owner[cur] >= 0 {
			return fail(off, "cluster %d is shared with stream %d", cur, owner[cur])
		}
		owner[cur] = int32(index)
		steps++

		env, err := format.ParseEnvelope(data[off:])
		if err != nil {
			return fail(off, "%v", err)
		}
		if err := env.Check(hdr.TotalClusters); err != nil {
			return fail(off, "cluster %d: %v", cur, err)
		}
		if !env.Traits.Has(format.TraitUsed) {
			return fail(off, "cluster %d is not in use (%v)", cur, env.Traits)
		}
		if env.Prev != prev {
			return fail(off+format.EnvelopePrevOffset, "cluster %d links back to %d, expected %d", cur, env.Prev, prev)
		}
		if env.Traits.Has(format.TraitStart) != (prev == format.NilCluster) {
			return fail(off, "cluster %d has misplaced Start trait", cur)
		}
		if steps > expected {
			return fail(off, "chain longer than the %d clusters its size needs", expected)
		}
		if env.Traits.Has(format.TraitEnd) {
			if env.Next != format.NilCluster {
				return fail(off+format.EnvelopeNextOffset, "end cluster %d links forward to %d", cur, env.Next)
			}
			if cur != l.End {
				return fail(off, "chain ends at %d but listing ends at %d", cur, l.End)
			}
			break
		}
		if env.Next == format.NilCluster {
			return fail(off+format.EnvelopeNextOffset, "chain breaks at cluster %d without End trait", cur)
		}
		prev, cur = cur, env.Next
	}
	if steps != expected {
		return fail(format.ListingOffset(index), "chain has %d clusters, logical size %d needs %d", steps, l.Size, expected)
	}
	return nil
}

func parseValid(data []byte) (format.Header, error) {
	if err := Header(data); err != nil {
		return format.Header{}, err
	}
	hdr, _ := format.ParseHeader(data)
	return hdr, nil
}
