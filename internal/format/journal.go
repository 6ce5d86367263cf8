package format

import "fmt"

// JournalMagic identifies a transaction journal record.
var JournalMagic = []byte{'C', 'K', 'T', 'J'}

// JournalState is the phase recorded by a transaction journal.
type JournalState uint8

const (
	JournalBegun     JournalState = 1 // working copy exists, outcome undecided
	JournalCommitted JournalState = 2 // working copy is complete and must replace the target
)

// Journal record layout:
//
//	0x00  magic     "CKTJ"
//	0x04  state     u8
//	0x05  size      u64  (working copy length)
//	0x0D  checksum  u64  (xxhash64 of the working copy)
const (
	JournalMagicOffset    = 0x00
	JournalStateOffset    = 0x04
	JournalSizeOffset     = 0x05
	JournalChecksumOffset = 0x0D
	JournalRecordSize     = 0x15
)

// Journal is a decoded journal record.
type Journal struct {
	State    JournalState
	Size     uint64
	Checksum uint64
}

// Bytes encodes j.
func (j Journal) Bytes() []byte {
	b := make([]byte, JournalRecordSize)
	copy(b[JournalMagicOffset:], JournalMagic)
	b[JournalStateOffset] = byte(j.State)
	PutU64(b, JournalSizeOffset, j.Size)
	PutU64(b, JournalChecksumOffset, j.Checksum)
	return b
}

// ParseJournal decodes a journal record.
func ParseJournal(b []byte) (Journal, error) {
	if len(b) < JournalRecordSize {
		return Journal{}, fmt.Errorf("journal: %w", ErrTruncated)
	}
	if string(b[JournalMagicOffset:JournalMagicOffset+4]) != string(JournalMagic) {
		return Journal{}, fmt.Errorf("journal: %w", ErrBadMagic)
	}
	j := Journal{
		State:    JournalState(b[JournalStateOffset]),
		Size:     ReadU64(b, JournalSizeOffset),
		Checksum: ReadU64(b, JournalChecksumOffset),
	}
	if j.State != JournalBegun && j.State != JournalCommitted {
		return Journal{}, fmt.Errorf("journal: unknown state %d", j.State)
	}
	return j, nil
}
