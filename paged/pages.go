package paged

import (
	"fmt"
	"sort"

	"github.com/joshuapare/clusterkit/pkg/types"
)

// findPage returns the position of the page holding index, which must be
// in range. The most recently found page is tried first, then its direct
// neighbours, and only then a binary search over the pages not already
// ruled out by those comparisons.
func (l *List[T]) findPage(index int) int {
	lo, hi := 0, len(l.pages)-1
	if c := l.last; c >= 0 && c < len(l.pages) {
		p := l.pages[c]
		switch {
		case index >= p.start && index <= p.end():
			return c
		case index == p.end()+1 && c+1 < len(l.pages) && l.pages[c+1].count > 0:
			l.last = c + 1
			return c + 1
		case index == p.start-1 && c > 0 && l.pages[c-1].count > 0:
			l.last = c - 1
			return c - 1
		case index > p.end():
			lo = c + 1
		default:
			hi = c - 1
		}
	}

	l.searches++
	k := lo + sort.Search(hi-lo+1, func(k int) bool {
		p := l.pages[lo+k]
		return p.start+p.count > index
	})
	l.last = k
	return k
}

func (l *List[T]) transition(p *page[T], next PageState) error {
	if !p.state.CanTransition(next) {
		return types.Statef("page %d: invalid transition %v -> %v", p.number, p.state, next)
	}
	p.state = next
	return nil
}

// ensureLoaded makes p resident, unloading the least recently used page
// first when MaxOpenPages would be exceeded.
func (l *List[T]) ensureLoaded(p *page[T]) error {
	l.tick++
	p.used = l.tick
	if p.state == Loaded {
		return nil
	}
	if err := l.evictFor(p); err != nil {
		return err
	}
	if err := l.transition(p, Loading); err != nil {
		return err
	}
	l.obs.emit(PageLoading, p.number, p.start, p.count)
	items, err := l.store.Load(p.number)
	if err != nil {
		p.state = Unloaded
		return fmt.Errorf("load page %d: %w", p.number, err)
	}
	if len(items) != p.count {
		p.state = Unloaded
		return types.Corruptf("page %d: holds %d items, index expects %d", p.number, len(items), p.count)
	}
	p.items = items
	if err := l.transition(p, Loaded); err != nil {
		return err
	}
	l.resident++
	l.obs.emit(PageLoaded, p.number, p.start, p.count)
	return nil
}

func (l *List[T]) evictFor(keep *page[T]) error {
	limit := l.opts.MaxOpenPages
	if limit <= 0 {
		return nil
	}
	for l.resident >= limit {
		var victim *page[T]
		for _, p := range l.pages {
			if p == keep || p.state != Loaded {
				continue
			}
			if victim == nil || p.used < victim.used {
				victim = p
			}
		}
		if victim == nil {
			return nil
		}
		if err := l.unload(victim); err != nil {
			return err
		}
	}
	return nil
}

func (l *List[T]) unload(p *page[T]) error {
	if err := l.transition(p, Unloading); err != nil {
		return err
	}
	l.obs.emit(PageUnloading, p.number, p.start, p.count)
	if p.dirty {
		if err := l.save(p); err != nil {
			p.state = Loaded
			return err
		}
	}
	p.items = nil
	if err := l.transition(p, Unloaded); err != nil {
		return err
	}
	l.resident--
	l.obs.emit(PageUnloaded, p.number, p.start, p.count)
	return nil
}

func (l *List[T]) save(p *page[T]) error {
	l.obs.emit(PageSaving, p.number, p.start, p.count)
	if err := l.store.Save(p.number, p.items); err != nil {
		return fmt.Errorf("save page %d: %w", p.number, err)
	}
	p.dirty = false
	l.obs.emit(PageSaved, p.number, p.start, p.count)
	return nil
}

// createPage appends an empty, loaded page at the tail.
func (l *List[T]) createPage() (*page[T], error) {
	number := len(l.pages)
	if err := l.store.Create(number); err != nil {
		return nil, fmt.Errorf("create page %d: %w", number, err)
	}
	p := &page[T]{number: number, start: l.count, state: Unloaded}
	if err := l.evictFor(p); err != nil {
		return nil, err
	}
	p.state = Loaded
	l.tick++
	p.used = l.tick
	l.resident++
	l.pages = append(l.pages, p)
	l.obs.emit(PageCreated, number, p.start, 0)
	l.log.Debug("page created", "page", number, "start", p.start)
	return p, nil
}

// deletePage removes p, which must be the last page.
func (l *List[T]) deletePage(p *page[T]) error {
	wasLoaded := p.state == Loaded
	if err := l.transition(p, Deleting); err != nil {
		return err
	}
	l.obs.emit(PageDeleting, p.number, p.start, p.count)
	if err := l.store.Delete(p.number); err != nil {
		if wasLoaded {
			p.state = Loaded
		} else {
			p.state = Unloaded
		}
		return fmt.Errorf("delete page %d: %w", p.number, err)
	}
	if err := l.transition(p, Deleted); err != nil {
		return err
	}
	if wasLoaded {
		l.resident--
	}
	p.items = nil
	l.pages = l.pages[:len(l.pages)-1]
	if l.last >= len(l.pages) {
		l.last = -1
	}
	l.obs.emit(PageDeleted, p.number, p.start, p.count)
	l.log.Debug("page deleted", "page", p.number)
	return nil
}
