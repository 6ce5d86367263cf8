// Package tx provides commit/rollback transactions over a storage file.
//
// All changes are applied to a private working copy of the target file;
// the target itself is untouched until Commit.
//
// Commit Protocol:
//  1. Flush the working copy and write it to <scratch>/<name>.work
//  2. Write a Committed journal record (size + xxhash64 of the working copy)
//     to <scratch>/<name>.journal and sync it
//  3. Replace the target with the work file
//  4. Remove the journal
//
// Crash Recovery:
// A Committed journal whose checksum matches the work file means the
// replacement in step 3 may not have happened; Recover completes it. Any
// other leftover state is discarded, leaving the target as it was.
package tx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OneOfOne/xxhash"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/internal/logger"
	"github.com/joshuapare/clusterkit/medium"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// DefaultMemoryLimit is the largest target copied into memory when
// Options.MemoryLimit is zero.
const DefaultMemoryLimit = 8 << 20

// ErrFinished indicates use of a transaction after its outcome was decided.
var ErrFinished = &types.Error{Kind: types.ErrKindState, Msg: "transaction already finished"}

// Options configures a Transaction. The zero value is usable.
type Options struct {
	// ScratchDir holds the work file and the journal. Defaults to the
	// target's directory. It should live on the target's filesystem so the
	// final replacement is a rename.
	ScratchDir string

	// MemoryLimit is the largest target kept in memory as the working copy.
	// Larger targets are copied to the work file and memory-mapped.
	// Zero means DefaultMemoryLimit; negative forces a file working copy.
	MemoryLimit int64

	// FlushMode applies to a file working copy.
	FlushMode medium.FlushMode

	Logger *slog.Logger
}

func (o Options) normalize(target string) Options {
	if o.ScratchDir == "" {
		o.ScratchDir = filepath.Dir(target)
	}
	if o.MemoryLimit == 0 {
		o.MemoryLimit = DefaultMemoryLimit
	}
	o.Logger = logger.Or(o.Logger)
	return o
}

type state int

const (
	stateActive state = iota
	stateCommitted
	stateRolledBack
)

// Transaction owns a working copy of a target file.
//
// The transaction is NOT thread-safe. Only one goroutine should use it at a time.
type Transaction struct {
	target  string
	opts    Options
	log     *slog.Logger
	work    medium.Medium
	paths   paths
	onDisk  bool // working copy is a mapped work file
	state   state
	started int64
}

type paths struct {
	work    string
	journal string
}

func scratchPaths(target, scratchDir string) paths {
	base := filepath.Join(scratchDir, filepath.Base(target))
	return paths{work: base + ".work", journal: base + ".journal"}
}

// Begin recovers any interrupted transaction on target and starts a new
// one. A missing target starts out empty and is created on Commit.
func Begin(target string, opts Options) (*Transaction, error) {
	if target == "" {
		return nil, types.Preconditionf("empty transaction target")
	}
	opts = opts.normalize(target)
	if err := os.MkdirAll(opts.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if _, err := Recover(target, opts.ScratchDir, opts.Logger); err != nil {
		return nil, err
	}

	t := &Transaction{
		target: target,
		opts:   opts,
		log:    opts.Logger,
		paths:  scratchPaths(target, opts.ScratchDir),
	}

	var size int64
	switch st, err := os.Stat(target); {
	case err == nil:
		size = st.Size()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("stat target: %w", err)
	}

	if opts.MemoryLimit > 0 && size <= opts.MemoryLimit {
		data, err := readIfExists(target)
		if err != nil {
			return nil, err
		}
		t.work = medium.NewMemory(data)
	} else {
		if err := copyFile(target, t.paths.work); err != nil {
			return nil, fmt.Errorf("copy target to work file: %w", err)
		}
		m, err := medium.OpenFile(t.paths.work, opts.FlushMode)
		if err != nil {
			_ = os.Remove(t.paths.work)
			return nil, err
		}
		t.work = m
		t.onDisk = true
	}
	t.started = size

	if err := writeJournal(t.paths.journal, format.Journal{State: format.JournalBegun}); err != nil {
		t.discard()
		return nil, err
	}
	t.log.Debug("transaction begun", "target", target, "size", size, "onDisk", t.onDisk)
	return t, nil
}

// Medium returns the working copy. It must not be used after the
// transaction is finished.
func (t *Transaction) Medium() medium.Medium { return t.work }

// Target returns the path of the file the transaction commits to.
func (t *Transaction) Target() string { return t.target }

// Active reports whether the outcome is still undecided.
func (t *Transaction) Active() bool { return t.state == stateActive }

// Commit makes the working copy the new content of the target. Committing
// twice is a no-op; committing after Rollback returns ErrFinished.
func (t *Transaction) Commit(ctx context.Context) error {
	switch t.state {
	case stateCommitted:
		return nil
	case stateRolledBack:
		return ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 1: working copy to the work file
	if err := t.work.Flush(ctx); err != nil {
		return fmt.Errorf("flush working copy: %w", err)
	}
	data := t.work.Bytes()
	j := format.Journal{
		State:    format.JournalCommitted,
		Size:     uint64(len(data)),
		Checksum: xxhash.Checksum64(data),
	}
	if t.onDisk {
		if err := t.work.Close(); err != nil {
			return fmt.Errorf("close work file: %w", err)
		}
		if err := syncFile(t.paths.work); err != nil {
			return fmt.Errorf("sync work file: %w", err)
		}
	} else if err := writeFileSync(t.paths.work, data); err != nil {
		return fmt.Errorf("write work file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		t.discard()
		t.state = stateRolledBack
		return err
	}

	// Step 2: durable commit decision
	if err := writeJournal(t.paths.journal, j); err != nil {
		t.discard()
		t.state = stateRolledBack
		return err
	}

	// Step 3 & 4: replace the target, then forget the journal
	if err := replaceFile(t.paths.work, t.target); err != nil {
		// The journal stays behind so the next Begin or Recover completes it.
		t.state = stateCommitted
		return fmt.Errorf("replace target: %w", err)
	}
	if err := os.Remove(t.paths.journal); err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.log.Warn("failed to remove journal", "path", t.paths.journal, "error", err)
	}
	t.state = stateCommitted
	t.log.Debug("transaction committed", "target", t.target, "size", j.Size, "was", t.started)
	return nil
}

// Rollback discards the working copy, leaving the target as it was.
// Rolling back twice is a no-op; rolling back after Commit returns
// ErrFinished.
func (t *Transaction) Rollback() error {
	switch t.state {
	case stateRolledBack:
		return nil
	case stateCommitted:
		return ErrFinished
	}
	t.discard()
	t.state = stateRolledBack
	t.log.Debug("transaction rolled back", "target", t.target)
	return nil
}

// Close finishes the transaction. Without a prior Commit it rolls back.
func (t *Transaction) Close() error {
	if t.state != stateActive {
		return nil
	}
	t.log.Warn("transaction closed without commit, rolling back", "target", t.target)
	return t.Rollback()
}

func (t *Transaction) discard() {
	if t.work != nil {
		_ = t.work.Close()
	}
	removeQuiet(t.paths.work, t.log)
	removeQuiet(t.paths.journal, t.log)
}
