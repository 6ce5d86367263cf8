package paged

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/clusterkit/internal/logger"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// Options configures a List. The zero value is usable.
type Options struct {
	// MaxOpenPages bounds the number of loaded pages. When a load would
	// exceed it the least recently used page is unloaded, saving it first
	// if dirty. Zero means unbounded.
	MaxOpenPages int

	// Observers receive list and page notifications.
	Observers []Observer

	// Logger receives debug records for page creation and deletion.
	// Nil uses the process-wide logger.
	Logger *slog.Logger
}

type page[T any] struct {
	number int
	start  int
	count  int
	size   int
	dirty  bool
	state  PageState
	items  []T
	used   uint64
}

func (p *page[T]) end() int { return p.start + p.count - 1 }

// PageInfo is a snapshot of one page.
type PageInfo struct {
	Number     int
	StartIndex int
	EndIndex   int
	Count      int
	Size       int
	Dirty      bool
	State      PageState
}

// List is an ordered collection split into pages supplied by a Store.
// Items are appended at the tail and removed from the tail; reads and
// in-place updates may address any index.
//
// List is NOT thread-safe.
type List[T any] struct {
	store Store[T]
	opts  Options
	obs   observers
	log   *slog.Logger

	pages  []*page[T]
	count  int
	loaded bool

	// last is the page most recently located, or -1.
	last int
	// searches counts binary-search fallbacks of the locator.
	searches int

	tick     uint64
	resident int
}

var _ types.ExtendedList[int] = (*List[int])(nil)

// New returns a list over store. Lists over stores that require loading
// must be loaded before use.
func New[T any](store Store[T], opts Options) *List[T] {
	return &List[T]{
		store: store,
		opts:  opts,
		obs:   observers(opts.Observers),
		log:   logger.Or(opts.Logger),
		last:  -1,
	}
}

// RequiresLoad reports whether Load must be called before other access.
func (l *List[T]) RequiresLoad() bool {
	return !l.loaded && l.store.RequiresLoad()
}

// Load builds the page index from the store. It is a no-op once loaded.
func (l *List[T]) Load() error {
	if l.loaded {
		return nil
	}
	metas, err := l.store.Pages()
	if err != nil {
		return fmt.Errorf("load page index: %w", err)
	}
	l.pages = make([]*page[T], len(metas))
	start := 0
	for i, m := range metas {
		if m.Count < 0 || m.Size < 0 || m.Size > l.store.Capacity() {
			return types.Corruptf("page %d: count %d size %d outside capacity %d", i, m.Count, m.Size, l.store.Capacity())
		}
		l.pages[i] = &page[T]{number: i, start: start, count: m.Count, size: m.Size, state: Unloaded}
		start += m.Count
	}
	l.count = start
	l.last = -1
	l.resident = 0
	l.loaded = true
	l.log.Debug("page index loaded", "pages", len(l.pages), "items", l.count)
	return nil
}

func (l *List[T]) ready() error {
	if !l.loaded {
		return types.Statef("paged list used before Load")
	}
	return nil
}

// Count returns the number of items.
func (l *List[T]) Count() int { return l.count }

// Pages returns a snapshot of every page, in order.
func (l *List[T]) Pages() []PageInfo {
	out := make([]PageInfo, len(l.pages))
	for i, p := range l.pages {
		out[i] = PageInfo{
			Number:     p.number,
			StartIndex: p.start,
			EndIndex:   p.end(),
			Count:      p.count,
			Size:       p.size,
			Dirty:      p.dirty,
			State:      p.state,
		}
	}
	return out
}

// Read returns the item at index.
func (l *List[T]) Read(index int) (T, error) {
	var zero T
	if err := types.CheckIndex(index, l.count); err != nil {
		return zero, err
	}
	items, err := l.ReadRange(index, 1)
	if err != nil {
		return zero, err
	}
	return items[0], nil
}

// ReadRange returns count items starting at index.
func (l *List[T]) ReadRange(index, count int) ([]T, error) {
	out := make([]T, 0, max(count, 0))
	err := l.ReadRangeByPage(index, count, func(_ PageInfo, items []T) error {
		out = append(out, items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadRangeByPage calls fn once per page covering [index, index+count), in
// index order, with the page's share of the range. items aliases the page
// and is only valid during the call.
func (l *List[T]) ReadRangeByPage(index, count int, fn func(page PageInfo, items []T) error) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := types.CheckRange(index, count, l.count); err != nil {
		return err
	}
	l.obs.emit(Accessing, -1, index, count)
	for count > 0 {
		p := l.pages[l.findPage(index)]
		off := index - p.start
		n := min(count, p.count-off)

		l.obs.emit(PageAccessing, p.number, index, n)
		if err := l.ensureLoaded(p); err != nil {
			return err
		}
		l.obs.emit(PageReading, p.number, index, n)
		info := PageInfo{Number: p.number, StartIndex: p.start, EndIndex: p.end(), Count: p.count, Size: p.size, Dirty: p.dirty, State: p.state}
		if err := fn(info, p.items[off:off+n]); err != nil {
			return err
		}
		l.obs.emit(PageRead, p.number, index, n)
		l.obs.emit(PageAccessed, p.number, index, n)

		index += n
		count -= n
	}
	l.obs.emit(Accessed, -1, index, 0)
	return nil
}

// AddRange appends items, filling the last page and creating new pages as
// each one fills up.
func (l *List[T]) AddRange(items []T) error {
	if err := l.ready(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	sizes, err := l.measure(items)
	if err != nil {
		return err
	}
	capacity := l.store.Capacity()
	for k, sz := range sizes {
		if sz > capacity {
			return types.Capacityf("item %d needs %d, page capacity is %d", k, sz, capacity)
		}
	}

	l.obs.emit(Accessing, -1, l.count, len(items))
	for len(items) > 0 {
		var p *page[T]
		if n := len(l.pages); n > 0 {
			p = l.pages[n-1]
		}
		fit := 0
		if p != nil {
			fit = l.fit(p, sizes)
		}
		if fit == 0 {
			if p, err = l.createPage(); err != nil {
				return err
			}
			fit = l.fit(p, sizes)
		}

		l.obs.emit(PageAccessing, p.number, l.count, fit)
		if err := l.ensureLoaded(p); err != nil {
			return err
		}
		l.obs.emit(PageWriting, p.number, l.count, fit)
		p.items = append(p.items, items[:fit]...)
		for _, sz := range sizes[:fit] {
			p.size += sz
		}
		p.count += fit
		p.dirty = true
		l.count += fit
		l.obs.emit(PageWrite, p.number, l.count-fit, fit)
		l.obs.emit(PageAccessed, p.number, l.count-fit, fit)

		items, sizes = items[fit:], sizes[fit:]
	}
	l.obs.emit(Accessed, -1, l.count, 0)
	return nil
}

// fit returns how many leading items of sizes still fit on p.
func (l *List[T]) fit(p *page[T], sizes []int) int {
	room := l.store.Capacity() - p.size
	n := 0
	for _, sz := range sizes {
		if sz > room {
			break
		}
		room -= sz
		n++
	}
	return n
}

// UpdateRange overwrites len(items) items starting at index. An update that
// would overflow any page is rejected before anything changes.
func (l *List[T]) UpdateRange(index int, items []T) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := types.CheckRange(index, len(items), l.count); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	sizes, err := l.measure(items)
	if err != nil {
		return err
	}

	type span struct {
		p    *page[T]
		off  int
		n    int
		size int
	}
	var spans []span
	capacity := l.store.Capacity()
	for i, rest := index, len(items); rest > 0; {
		p := l.pages[l.findPage(i)]
		off := i - p.start
		n := min(rest, p.count-off)
		if err := l.ensureLoaded(p); err != nil {
			return err
		}
		size := p.size
		for k := range n {
			old, err := l.store.ItemSize(p.items[off+k])
			if err != nil {
				return err
			}
			size += sizes[i-index+k] - old
		}
		if size > capacity {
			return types.Unsupportedf("update at %d overflows page %d (%d > %d)", index, p.number, size, capacity)
		}
		spans = append(spans, span{p, off, n, size})
		i += n
		rest -= n
	}

	l.obs.emit(Accessing, -1, index, len(items))
	pos := 0
	for _, s := range spans {
		l.obs.emit(PageAccessing, s.p.number, s.p.start+s.off, s.n)
		if err := l.ensureLoaded(s.p); err != nil {
			return err
		}
		l.obs.emit(PageWriting, s.p.number, s.p.start+s.off, s.n)
		copy(s.p.items[s.off:s.off+s.n], items[pos:pos+s.n])
		s.p.size = s.size
		s.p.dirty = true
		l.obs.emit(PageWrite, s.p.number, s.p.start+s.off, s.n)
		l.obs.emit(PageAccessed, s.p.number, s.p.start+s.off, s.n)
		pos += s.n
	}
	l.obs.emit(Accessed, -1, index, 0)
	return nil
}

// InsertRange inserts items before index. Only index == Count is supported.
func (l *List[T]) InsertRange(index int, items []T) error {
	if err := l.ready(); err != nil {
		return err
	}
	if index < 0 || index > l.count {
		return types.Preconditionf("insert index %d out of range [0, %d]", index, l.count)
	}
	if index != l.count {
		return types.Unsupportedf("insert at %d: paged lists only grow at the tail (%d)", index, l.count)
	}
	return l.AddRange(items)
}

// RemoveRange removes count items starting at index. The range must end at
// the last item. Whole pages are deleted; a partially covered page shrinks
// from its tail.
func (l *List[T]) RemoveRange(index, count int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if err := types.CheckRange(index, count, l.count); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if index+count != l.count {
		return types.Unsupportedf("remove [%d, +%d): paged lists only shrink from the tail (%d items)", index, count, l.count)
	}

	l.obs.emit(Accessing, -1, index, count)
	for count > 0 {
		p := l.pages[len(l.pages)-1]
		if count >= p.count {
			if err := l.deletePage(p); err != nil {
				return err
			}
			count -= p.count
			l.count -= p.count
			continue
		}

		l.obs.emit(PageAccessing, p.number, index, count)
		if err := l.ensureLoaded(p); err != nil {
			return err
		}
		l.obs.emit(PageWriting, p.number, index, count)
		keep := p.count - count
		for _, item := range p.items[keep:] {
			sz, err := l.store.ItemSize(item)
			if err != nil {
				return err
			}
			p.size -= sz
		}
		clear(p.items[keep:])
		p.items = p.items[:keep]
		p.count = keep
		p.dirty = true
		l.count -= count
		l.obs.emit(PageWrite, p.number, index, count)
		l.obs.emit(PageAccessed, p.number, index, count)
		count = 0
	}
	l.obs.emit(Accessed, -1, index, 0)
	return nil
}

// Flush saves every dirty loaded page.
func (l *List[T]) Flush() error {
	for _, p := range l.pages {
		if p.state == Loaded && p.dirty {
			if err := l.save(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *List[T]) measure(items []T) ([]int, error) {
	sizes := make([]int, len(items))
	for k, item := range items {
		sz, err := l.store.ItemSize(item)
		if err != nil {
			return nil, fmt.Errorf("measure item %d: %w", k, err)
		}
		sizes[k] = sz
	}
	return sizes, nil
}
