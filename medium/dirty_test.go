package medium

import "testing"

func TestTracker_PageAlignment(t *testing.T) {
	tr := NewTracker()
	tr.Add(5000, 200)

	data, header := tr.Coalesced(1 << 20)
	if header != nil {
		t.Fatalf("header page should be clean, got %+v", header)
	}
	if len(data) != 1 || data[0].Off != 4096 || data[0].Len != 4096 {
		t.Fatalf("unexpected ranges: %+v", data)
	}
}

func TestTracker_MergesAndSplitsHeader(t *testing.T) {
	tr := NewTracker()
	tr.Add(10, 4)    // header page
	tr.Add(4100, 10) // page 1
	tr.Add(8200, 10) // page 2, adjacent to page 1
	tr.Add(40000, 1) // isolated
	tr.Add(0, 0)     // ignored
	tr.Add(-5, 10)   // ignored

	data, header := tr.Coalesced(1 << 20)
	if header == nil || header.Off != 0 || header.Len != 4096 {
		t.Fatalf("header range = %+v", header)
	}
	// The header page merges with pages 1-2, and is split back out.
	if len(data) != 2 {
		t.Fatalf("expected 2 data ranges, got %+v", data)
	}
	if data[0].Off != 4096 || data[0].Len != 8192 {
		t.Fatalf("data[0] = %+v", data[0])
	}
	if data[1].Off != 36864 || data[1].Len != 4096 {
		t.Fatalf("data[1] = %+v", data[1])
	}
}

func TestTracker_ClampsToLimit(t *testing.T) {
	tr := NewTracker()
	tr.Add(100, 50)
	tr.Add(9000, 50)

	data, header := tr.Coalesced(200)
	if header == nil || header.Len != 200 {
		t.Fatalf("header should be clamped to 200 bytes: %+v", header)
	}
	if len(data) != 0 {
		t.Fatalf("ranges beyond the limit must be dropped: %+v", data)
	}

	tr.Reset()
	if tr.Pending() {
		t.Fatalf("Reset should clear ranges")
	}
}
