package cluster

import "slices"

// cache is the strategy behind a CachePolicy. Keys are stream indices.
type cache[T any] interface {
	Get(i int) (T, bool)
	Put(i int, v T)
	Delete(i int)
	Reset()
}

func newCache[T any](p CachePolicy) cache[T] {
	if p == CacheRemember {
		return &rememberCache[T]{entries: make(map[int]T)}
	}
	return noCache[T]{}
}

type noCache[T any] struct{}

func (noCache[T]) Get(int) (T, bool) {
	var zero T
	return zero, false
}
func (noCache[T]) Put(int, T) {}
func (noCache[T]) Delete(int) {}
func (noCache[T]) Reset()     {}

type rememberCache[T any] struct {
	entries map[int]T
}

func (c *rememberCache[T]) Get(i int) (T, bool) {
	v, ok := c.entries[i]
	return v, ok
}

func (c *rememberCache[T]) Put(i int, v T) { c.entries[i] = v }

func (c *rememberCache[T]) Delete(i int) { delete(c.entries, i) }

func (c *rememberCache[T]) Reset() { clear(c.entries) }

// freePool is the ascending set of free cluster indices.
type freePool struct {
	ids []int32
}

func (p *freePool) add(i int32) {
	if idx, found := slices.BinarySearch(p.ids, i); !found {
		p.ids = slices.Insert(p.ids, idx, i)
	}
}

func (p *freePool) remove(i int32) bool {
	idx, found := slices.BinarySearch(p.ids, i)
	if found {
		p.ids = slices.Delete(p.ids, idx, idx+1)
	}
	return found
}

func (p *freePool) popLowest() (int32, bool) {
	if len(p.ids) == 0 {
		return 0, false
	}
	id := p.ids[0]
	p.ids = slices.Delete(p.ids, 0, 1)
	return id, true
}

func (p *freePool) len() int { return len(p.ids) }

func (p *freePool) reset() { p.ids = p.ids[:0] }
