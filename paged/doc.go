// Package paged implements a generic ordered list whose items are split
// into pages supplied by a Store.
//
// Pages go through an explicit lifecycle (see PageState) and every read or
// write raises notifications to the list's Observers. Lists grow and shrink
// only at the tail: InsertRange is accepted at index Count, RemoveRange only
// for ranges ending at the last item. UpdateRange overwrites in place and
// fails without changing anything when a page would overflow.
//
// Two stores are provided: MemoryStore, with a fixed item count per page,
// and ClusteredStore, which keeps page k in stream k of a cluster.Storage
// and budgets pages in bytes.
//
// Index lookups try the most recently used page, then its neighbours, and
// fall back to a binary search, so sequential access is O(1) per lookup and
// random access O(log pages).
package paged
