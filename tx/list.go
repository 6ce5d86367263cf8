package tx

import (
	"context"
	"fmt"

	"github.com/joshuapare/clusterkit/cluster"
	"github.com/joshuapare/clusterkit/paged"
	"github.com/joshuapare/clusterkit/pkg/types"
	"github.com/joshuapare/clusterkit/serial"
)

// DefaultPageBytes is the page stream size used when ListOptions.PageBytes
// is zero.
const DefaultPageBytes = 4096

// ListOptions configures OpenList.
type ListOptions struct {
	Tx        Options
	Storage   cluster.Options
	List      paged.Options
	PageBytes int
}

// List is a paged list whose pages live in a clustered storage file and
// whose changes only reach that file on Commit.
//
// Once the transaction is committed or rolled back every list operation
// returns ErrFinished. Close without Commit rolls back.
type List[T any] struct {
	tx      *Transaction
	storage *cluster.Storage
	list    *paged.List[T]
}

var _ types.ExtendedList[int] = (*List[int])(nil)

// OpenList begins a transaction on target and opens the paged list stored
// in it. A missing or empty target starts as an empty list.
func OpenList[T any](target string, ser serial.Serializer[T], opts ListOptions) (*List[T], error) {
	if opts.PageBytes == 0 {
		opts.PageBytes = DefaultPageBytes
	}
	if opts.Storage.Logger == nil {
		opts.Storage.Logger = opts.Tx.Logger
	}
	if opts.List.Logger == nil {
		opts.List.Logger = opts.Tx.Logger
	}

	t, err := Begin(target, opts.Tx)
	if err != nil {
		return nil, err
	}
	storage, err := cluster.New(t.Medium(), opts.Storage)
	if err != nil {
		_ = t.Rollback()
		return nil, fmt.Errorf("open storage %s: %w", target, err)
	}
	list, err := paged.NewClustered(storage, ser, opts.PageBytes, opts.List)
	if err != nil {
		_ = t.Rollback()
		return nil, err
	}
	if err := list.Load(); err != nil {
		_ = t.Rollback()
		return nil, fmt.Errorf("load list %s: %w", target, err)
	}
	return &List[T]{tx: t, storage: storage, list: list}, nil
}

func (l *List[T]) active() error {
	if !l.tx.Active() {
		return ErrFinished
	}
	return nil
}

// Storage exposes the working copy's clustered storage for introspection.
func (l *List[T]) Storage() *cluster.Storage { return l.storage }

// Count returns the number of items, or 0 once finished.
func (l *List[T]) Count() int {
	if !l.tx.Active() {
		return 0
	}
	return l.list.Count()
}

func (l *List[T]) Read(index int) (T, error) {
	if err := l.active(); err != nil {
		var zero T
		return zero, err
	}
	return l.list.Read(index)
}

func (l *List[T]) ReadRange(index, count int) ([]T, error) {
	if err := l.active(); err != nil {
		return nil, err
	}
	return l.list.ReadRange(index, count)
}

func (l *List[T]) AddRange(items []T) error {
	if err := l.active(); err != nil {
		return err
	}
	return l.list.AddRange(items)
}

func (l *List[T]) UpdateRange(index int, items []T) error {
	if err := l.active(); err != nil {
		return err
	}
	return l.list.UpdateRange(index, items)
}

func (l *List[T]) InsertRange(index int, items []T) error {
	if err := l.active(); err != nil {
		return err
	}
	return l.list.InsertRange(index, items)
}

func (l *List[T]) RemoveRange(index, count int) error {
	if err := l.active(); err != nil {
		return err
	}
	return l.list.RemoveRange(index, count)
}

// Commit saves dirty pages into the working copy and commits it over the
// target. Committing twice is a no-op.
func (l *List[T]) Commit(ctx context.Context) error {
	if l.tx.Active() {
		if err := l.list.Flush(); err != nil {
			return fmt.Errorf("flush pages: %w", err)
		}
		if err := l.storage.Flush(ctx); err != nil {
			return err
		}
	}
	return l.tx.Commit(ctx)
}

// Rollback discards every change made through l.
func (l *List[T]) Rollback() error { return l.tx.Rollback() }

// Close rolls back unless the transaction was already decided.
func (l *List[T]) Close() error { return l.tx.Close() }
