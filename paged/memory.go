package paged

import (
	"slices"

	"github.com/joshuapare/clusterkit/pkg/types"
)

// MemoryStore keeps pages of a fixed item count in memory.
type MemoryStore[T any] struct {
	itemsPerPage int
	pages        [][]T
}

// NewMemoryStore returns an empty store holding itemsPerPage items per page.
func NewMemoryStore[T any](itemsPerPage int) (*MemoryStore[T], error) {
	if itemsPerPage <= 0 {
		return nil, types.Preconditionf("items per page must be positive, got %d", itemsPerPage)
	}
	return &MemoryStore[T]{itemsPerPage: itemsPerPage}, nil
}

// NewMemory returns a list over a fresh MemoryStore. It needs no Load.
func NewMemory[T any](itemsPerPage int, opts Options) (*List[T], error) {
	store, err := NewMemoryStore[T](itemsPerPage)
	if err != nil {
		return nil, err
	}
	l := New[T](store, opts)
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (m *MemoryStore[T]) Capacity() int { return m.itemsPerPage }

func (m *MemoryStore[T]) ItemSize(T) (int, error) { return 1, nil }

func (m *MemoryStore[T]) RequiresLoad() bool { return false }

func (m *MemoryStore[T]) Pages() ([]PageMeta, error) {
	out := make([]PageMeta, len(m.pages))
	for i, p := range m.pages {
		out[i] = PageMeta{Count: len(p), Size: len(p)}
	}
	return out, nil
}

func (m *MemoryStore[T]) Create(number int) error {
	if number != len(m.pages) {
		return types.Unsupportedf("memory store: create page %d, next page is %d", number, len(m.pages))
	}
	m.pages = append(m.pages, nil)
	return nil
}

func (m *MemoryStore[T]) Delete(number int) error {
	if number != len(m.pages)-1 {
		return types.Unsupportedf("memory store: delete page %d, last page is %d", number, len(m.pages)-1)
	}
	m.pages = m.pages[:number]
	return nil
}

func (m *MemoryStore[T]) Load(number int) ([]T, error) {
	if err := types.CheckIndex(number, len(m.pages)); err != nil {
		return nil, err
	}
	return slices.Clone(m.pages[number]), nil
}

func (m *MemoryStore[T]) Save(number int, items []T) error {
	if err := types.CheckIndex(number, len(m.pages)); err != nil {
		return err
	}
	m.pages[number] = slices.Clone(items)
	return nil
}
