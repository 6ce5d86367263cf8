package tx

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/internal/logger"
)

// Recover resolves a transaction on target that was interrupted before it
// finished. It reports whether a committed transaction was completed.
//
//   - Committed journal, work file matching the checksum: the work file
//     replaces the target.
//   - Committed journal, work file gone, target matching the checksum: the
//     replacement already happened; only the journal is removed.
//   - Anything else: work file and journal are discarded.
func Recover(target, scratchDir string, log *slog.Logger) (bool, error) {
	log = logger.Or(log)
	p := scratchPaths(target, scratchDir)

	j, found, err := readJournal(p.journal)
	if err != nil {
		return false, err
	}
	if !found {
		// A work file without a journal predates any commit decision.
		removeQuiet(p.work, log)
		return false, nil
	}

	if j.State == format.JournalCommitted {
		if matches(p.work, j) {
			if err := replaceFile(p.work, target); err != nil {
				return false, err
			}
			removeQuiet(p.journal, log)
			log.Info("recovered committed transaction", "target", target, "size", j.Size)
			return true, nil
		}
		if _, err := os.Stat(p.work); errors.Is(err, fs.ErrNotExist) && matches(target, j) {
			removeQuiet(p.journal, log)
			log.Debug("removed stale journal", "target", target)
			return false, nil
		}
	}

	removeQuiet(p.work, log)
	removeQuiet(p.journal, log)
	log.Info("discarded interrupted transaction", "target", target, "state", j.State)
	return false, nil
}

func matches(path string, j format.Journal) bool {
	n, sum, err := fileDigest(path)
	return err == nil && uint64(n) == j.Size && sum == j.Checksum
}

func removeQuiet(path string, log *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to remove scratch file", "path", path, "error", err)
	}
}
