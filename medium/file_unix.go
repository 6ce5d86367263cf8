//go:build linux || darwin || freebsd

package medium

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// OpenFile mmaps the file at path read-write, creating it when absent.
func OpenFile(path string, mode FlushMode) (*File, error) {
	f, size, err := openRW(path)
	if err != nil {
		return nil, err
	}
	m := &File{path: path, f: f, tracker: NewTracker(), mode: mode}
	if err := m.mapFile(size); err != nil {
		_ = f.Close()
		return nil, err
	}
	return m, nil
}

func (m *File) mapFile(size int64) error {
	if size == 0 {
		m.data = nil
		m.size = 0
		return nil
	}
	if size > int64(^uint(0)>>1) {
		return fmt.Errorf("medium: file too large to map (%d bytes)", size)
	}
	data, err := unix.Mmap(m.FD(), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("medium: mmap failed: %w", err)
	}
	m.data = data
	m.size = size
	return nil
}

func (m *File) unmap() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// Resize truncates or extends the file and remaps it. New bytes are
// zero-initialized by the OS.
func (m *File) Resize(n int64) error {
	if m.f == nil {
		return ErrClosed
	}
	if n < 0 {
		return fmt.Errorf("medium: negative size %d", n)
	}
	if n == m.size {
		return nil
	}

	old := m.size
	if err := m.unmap(); err != nil {
		return fmt.Errorf("medium: failed to unmap before resize: %w", err)
	}

	if err := m.f.Truncate(n); err != nil {
		// Try to remap old size to recover
		_ = m.mapFile(old)
		return fmt.Errorf("medium: failed to truncate file: %w", err)
	}

	if err := m.mapFile(n); err != nil {
		_ = m.f.Truncate(old)
		_ = m.mapFile(old)
		return fmt.Errorf("medium: failed to remap after resize: %w", err)
	}
	return nil
}

// Flush msyncs dirty data pages, then the header page, then syncs the file
// descriptor according to the flush mode.
func (m *File) Flush(ctx context.Context) error {
	if m.f == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(m.data) > 0 && m.tracker.Pending() {
		data, header := m.tracker.Coalesced(m.size)
		if err := m.flushRanges(ctx, data); err != nil {
			return err
		}
		if header != nil {
			if err := msync(m.data[:header.Len]); err != nil {
				return err
			}
		}
	}
	m.tracker.Reset()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.mode == FlushDataOnly {
		return nil
	}
	return fdatasync(m.FD(), m.mode == FlushFull)
}

func (m *File) Close() error {
	if m.f == nil {
		return nil
	}
	unmapErr := m.unmap()
	closeErr := m.f.Close()
	m.f = nil
	m.size = 0
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}
