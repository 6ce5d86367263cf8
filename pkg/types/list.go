package types

// ExtendedList is the range-oriented list surface shared by paged lists and
// the transactional wrapper. Indices are zero-based and contiguous.
type ExtendedList[T any] interface {
	// Count returns the number of items in the list.
	Count() int

	// ReadRange returns count items starting at index.
	ReadRange(index, count int) ([]T, error)

	// AddRange appends items at the end of the list.
	AddRange(items []T) error

	// UpdateRange overwrites len(items) items starting at index.
	UpdateRange(index int, items []T) error

	// InsertRange inserts items before index.
	InsertRange(index int, items []T) error

	// RemoveRange removes count items starting at index.
	RemoveRange(index, count int) error
}

// CheckRange validates that [index, index+count) lies within a list of n items.
func CheckRange(index, count, n int) error {
	if index < 0 || count < 0 || index > n || count > n-index {
		return Preconditionf("range [%d, +%d) out of bounds for %d items", index, count, n)
	}
	return nil
}

// CheckIndex validates that index addresses an item of a list of n items.
func CheckIndex(index, n int) error {
	if index < 0 || index >= n {
		return Preconditionf("index %d out of range [0, %d)", index, n)
	}
	return nil
}
