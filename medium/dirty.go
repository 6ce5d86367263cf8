package medium

import "sort"

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// Range represents a dirty byte range (absolute offsets).
type Range struct {
	Off int64 // Absolute offset in the medium
	Len int64 // Length in bytes
}

// Tracker accumulates dirty ranges and coalesces them into page-aligned,
// non-overlapping ranges at flush time.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	ranges   []Range // Dirty ranges (coalesced at flush time)
	pageSize int64
}

// NewTracker creates a dirty tracker with page-sized granularity.
func NewTracker() *Tracker {
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range. Empty and negative ranges are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 || off < 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Pending reports whether any range is recorded.
func (t *Tracker) Pending() bool {
	return len(t.ranges) > 0
}

// Coalesced returns the page-aligned ranges that lie within [0, limit),
// split into data ranges and the header page (offset 0) if it is dirty.
func (t *Tracker) Coalesced(limit int64) (data []Range, header *Range) {
	for _, r := range t.coalesce() {
		end := r.Off + r.Len
		if end > limit {
			end = limit
		}
		if r.Off >= end {
			continue
		}
		if r.Off == 0 {
			hdrEnd := t.pageSize
			if hdrEnd > end {
				hdrEnd = end
			}
			header = &Range{Off: 0, Len: hdrEnd}
			if end > hdrEnd {
				data = append(data, Range{Off: hdrEnd, Len: end - hdrEnd})
			}
			continue
		}
		data = append(data, Range{Off: r.Off, Len: end - r.Off})
	}
	return data, header
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping/adjacent ranges.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		// Round down start to page boundary
		start := (r.Off / t.pageSize) * t.pageSize

		// Round up end to page boundary
		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}

		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for i := 1; i < len(aligned); i++ {
		next := aligned[i]
		currentEnd := current.Off + current.Len
		if next.Off <= currentEnd {
			end := next.Off + next.Len
			if end > currentEnd {
				current.Len = end - current.Off
			}
		} else {
			merged = append(merged, current)
			current = next
		}
	}
	merged = append(merged, current)

	return merged
}
