package paged

// PageMeta describes a stored page without loading its items.
type PageMeta struct {
	Count int // items on the page
	Size  int // footprint of those items, in the store's capacity units
}

// Store supplies page content to a List. Pages are numbered 0..N-1; pages
// are created and deleted only at the tail.
type Store[T any] interface {
	// Capacity is the footprint budget of one page.
	Capacity() int

	// ItemSize returns the footprint of item, in the same units as Capacity.
	ItemSize(item T) (int, error)

	// RequiresLoad reports whether Pages must be consulted before the list
	// can be used.
	RequiresLoad() bool

	// Pages returns metadata for every stored page, in page order.
	Pages() ([]PageMeta, error)

	// Create appends an empty page with the given number.
	Create(number int) error

	// Delete removes the last page, which must have the given number.
	Delete(number int) error

	// Load returns a page's items.
	Load(number int) ([]T, error)

	// Save replaces a page's items.
	Save(number int, items []T) error
}
