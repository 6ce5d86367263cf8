package paged

import "fmt"

// PageState is the lifecycle state of a page.
//
//	Unloaded -> Loading -> Loaded -> Unloading -> Unloaded
//	Unloaded | Loaded -> Deleting -> Deleted
//
// Deleted is terminal.
type PageState int

const (
	Unloaded PageState = iota
	Loading
	Loaded
	Unloading
	Deleting
	Deleted
)

func (s PageState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Unloading:
		return "unloading"
	case Deleting:
		return "deleting"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("PageState(%d)", int(s))
	}
}

// CanTransition reports whether a page may move from s to next.
func (s PageState) CanTransition(next PageState) bool {
	switch s {
	case Unloaded:
		return next == Loading || next == Deleting
	case Loading:
		return next == Loaded || next == Unloaded
	case Loaded:
		return next == Unloading || next == Deleting
	case Unloading:
		return next == Unloaded || next == Loaded
	case Deleting:
		return next == Deleted
	default:
		return false
	}
}
