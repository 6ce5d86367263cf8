//go:build !linux && !darwin && !freebsd

package medium

import (
	"context"
	"fmt"
	"io"
)

// OpenFile loads the file at path into memory, creating it when absent.
// Dirty ranges are written back on Flush.
func OpenFile(path string, mode FlushMode) (*File, error) {
	f, size, err := openRW(path)
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{path: path, f: f, data: data, size: size, tracker: NewTracker(), mode: mode}, nil
}

func (m *File) Resize(n int64) error {
	if m.f == nil {
		return ErrClosed
	}
	if n < 0 {
		return fmt.Errorf("medium: negative size %d", n)
	}
	if err := m.f.Truncate(n); err != nil {
		return fmt.Errorf("medium: failed to truncate file: %w", err)
	}
	if n <= int64(len(m.data)) {
		m.data = m.data[:n]
	} else {
		grown := make([]byte, n)
		copy(grown, m.data)
		m.data = grown
		m.tracker.Add(int(m.size), int(n-m.size))
	}
	m.size = n
	return nil
}

// Flush writes dirty data ranges, then the header page, then syncs.
func (m *File) Flush(ctx context.Context) error {
	if m.f == nil {
		return ErrClosed
	}
	data, header := m.tracker.Coalesced(m.size)
	for _, r := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := m.f.WriteAt(m.data[r.Off:r.Off+r.Len], r.Off); err != nil {
			return err
		}
	}
	if header != nil {
		if _, err := m.f.WriteAt(m.data[:header.Len], 0); err != nil {
			return err
		}
	}
	m.tracker.Reset()
	if m.mode == FlushDataOnly {
		return nil
	}
	return m.f.Sync()
}

func (m *File) Close() error {
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	m.data = nil
	m.size = 0
	return err
}
