package format

import (
	"errors"
	"testing"
)

func TestJournalRoundTrip(t *testing.T) {
	j := Journal{State: JournalCommitted, Size: 1234, Checksum: 0xDEADBEEFCAFE}
	got, err := ParseJournal(j.Bytes())
	if err != nil {
		t.Fatalf("ParseJournal: %v", err)
	}
	if got != j {
		t.Fatalf("got %+v want %+v", got, j)
	}
}

func TestParseJournalErrors(t *testing.T) {
	if _, err := ParseJournal([]byte("CKT")); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected truncation, got %v", err)
	}
	b := Journal{State: JournalBegun}.Bytes()
	b[0] = 'X'
	if _, err := ParseJournal(b); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected bad magic, got %v", err)
	}
	b = Journal{State: JournalBegun}.Bytes()
	b[JournalStateOffset] = 9
	if _, err := ParseJournal(b); err == nil {
		t.Fatalf("expected unknown state error")
	}
}
