// Package medium provides the backing media a clustered storage lives in: a
// growable in-memory buffer and a memory-mapped file.
//
// Callers mutate the slice returned by Bytes in place and report every
// modified range through MarkDirty; Flush persists those ranges in order
// (data first, the header page last) and optionally syncs the file.
//
// A slice returned by Bytes is invalidated by Resize and Close.
//
// Media are NOT thread-safe. Only one goroutine should use a medium at a time.
package medium

import (
	"context"
	"errors"
)

// ErrClosed indicates an operation on a closed medium.
var ErrClosed = errors.New("medium: closed")

// Medium is a resizable, byte-addressable backing store.
type Medium interface {
	// Bytes returns the current contents. The slice aliases the medium.
	Bytes() []byte

	// Size returns the current length in bytes.
	Size() int64

	// Resize grows (zero-filled) or shrinks the medium to n bytes.
	Resize(n int64) error

	// MarkDirty records that [off, off+length) was modified.
	MarkDirty(off, length int)

	// Flush persists all dirty ranges.
	Flush(ctx context.Context) error

	// Close releases the medium. Unflushed changes of a file medium may be lost.
	Close() error
}

// FlushMode controls durability guarantees for file media.
type FlushMode int

const (
	// FlushAuto provides safe defaults for most use cases:
	// - msync() dirty data pages
	// - fdatasync() after the header page is written
	FlushAuto FlushMode = iota

	// FlushDataOnly only flushes dirty pages via msync().
	// The caller is responsible for syncing the file later.
	FlushDataOnly

	// FlushFull provides power-loss durability:
	// - msync() dirty pages and header page
	// - fdatasync(), with F_FULLFSYNC on macOS
	FlushFull
)

func (m FlushMode) String() string {
	switch m {
	case FlushAuto:
		return "auto"
	case FlushDataOnly:
		return "data"
	case FlushFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseFlushMode maps "auto", "data" and "full" to a FlushMode.
func ParseFlushMode(s string) (FlushMode, error) {
	switch s {
	case "", "auto":
		return FlushAuto, nil
	case "data":
		return FlushDataOnly, nil
	case "full":
		return FlushFull, nil
	default:
		return FlushAuto, errors.New("medium: unknown flush mode " + s)
	}
}
