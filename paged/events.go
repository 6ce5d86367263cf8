package paged

import (
	"fmt"
	"log/slog"
)

// EventKind identifies a list or page lifecycle notification.
type EventKind int

const (
	// List-level notifications bracket every read or write call.
	Accessing EventKind = iota
	Accessed

	// Page-scoped notifications, in the order they are raised for one page.
	PageAccessing
	PageReading
	PageRead
	PageWriting
	PageWrite
	PageAccessed

	// Page lifecycle.
	PageCreated
	PageLoading
	PageLoaded
	PageUnloading
	PageUnloaded
	PageSaving
	PageSaved
	PageDeleting
	PageDeleted
)

var eventNames = [...]string{
	Accessing:     "Accessing",
	Accessed:      "Accessed",
	PageAccessing: "PageAccessing",
	PageReading:   "PageReading",
	PageRead:      "PageRead",
	PageWriting:   "PageWriting",
	PageWrite:     "PageWrite",
	PageAccessed:  "PageAccessed",
	PageCreated:   "PageCreated",
	PageLoading:   "PageLoading",
	PageLoaded:    "PageLoaded",
	PageUnloading: "PageUnloading",
	PageUnloaded:  "PageUnloaded",
	PageSaving:    "PageSaving",
	PageSaved:     "PageSaved",
	PageDeleting:  "PageDeleting",
	PageDeleted:   "PageDeleted",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one notification. Page is -1 for list-level events. Index and
// Count describe the item range involved, when there is one.
type Event struct {
	Kind  EventKind
	Page  int
	Index int
	Count int
}

// Observer receives list and page notifications synchronously.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// EventLog records every event it observes.
type EventLog struct {
	Events []Event
}

func (l *EventLog) OnEvent(e Event) { l.Events = append(l.Events, e) }

// Kinds returns the recorded event kinds in order.
func (l *EventLog) Kinds() []EventKind {
	out := make([]EventKind, len(l.Events))
	for i, e := range l.Events {
		out[i] = e.Kind
	}
	return out
}

// Reset forgets all recorded events.
func (l *EventLog) Reset() { l.Events = l.Events[:0] }

// LogObserver writes every event as a debug record.
func LogObserver(log *slog.Logger) Observer {
	return ObserverFunc(func(e Event) {
		log.Debug("page event", "kind", e.Kind.String(), "page", e.Page, "index", e.Index, "count", e.Count)
	})
}

type observers []Observer

func (o observers) emit(kind EventKind, page, index, count int) {
	if len(o) == 0 {
		return
	}
	e := Event{Kind: kind, Page: page, Index: index, Count: count}
	for _, obs := range o {
		obs.OnEvent(e)
	}
}
