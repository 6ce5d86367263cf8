package medium

import (
	"context"
	"fmt"
)

// Memory is a Medium held entirely in a byte slice. Flush is a no-op.
type Memory struct {
	data   []byte
	closed bool
}

// NewMemory returns a memory medium initialized with a copy of initial.
func NewMemory(initial []byte) *Memory {
	return &Memory{data: append([]byte(nil), initial...)}
}

func (m *Memory) Bytes() []byte { return m.data }

func (m *Memory) Size() int64 { return int64(len(m.data)) }

// Resize grows or shrinks the buffer. Growth reuses spare capacity and
// zero-fills the new tail.
func (m *Memory) Resize(n int64) error {
	if m.closed {
		return ErrClosed
	}
	if n < 0 {
		return fmt.Errorf("medium: negative size %d", n)
	}
	cur := int64(len(m.data))
	switch {
	case n == cur:
	case n < cur:
		m.data = m.data[:n]
	case n <= int64(cap(m.data)):
		m.data = m.data[:n]
		clear(m.data[cur:])
	default:
		grown := make([]byte, n, n+n/4)
		copy(grown, m.data)
		m.data = grown
	}
	return nil
}

func (m *Memory) MarkDirty(off, length int) {}

func (m *Memory) Flush(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}

// Snapshot returns a copy of the current contents.
func (m *Memory) Snapshot() []byte {
	return append([]byte(nil), m.data...)
}
