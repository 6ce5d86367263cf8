package tx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OneOfOne/xxhash"

	"github.com/joshuapare/clusterkit/internal/format"
)

func readIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// copyFile copies src to dst and syncs dst. A missing src yields an empty dst.
func copyFile(src, dst string) error {
	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		_ = out.Close()
		return err
	default:
		_, err = io.Copy(out, in)
		_ = in.Close()
		if err != nil {
			_ = out.Close()
			return err
		}
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeJournal(path string, j format.Journal) error {
	if err := writeFileSync(path, j.Bytes()); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

func readJournal(path string) (format.Journal, bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return format.Journal{}, false, nil
	}
	if err != nil {
		return format.Journal{}, false, fmt.Errorf("read journal: %w", err)
	}
	j, err := format.ParseJournal(b)
	if err != nil {
		// A torn journal never recorded a commit decision.
		return format.Journal{State: format.JournalBegun}, true, nil
	}
	return j, true, nil
}

// fileDigest returns the size and xxhash64 of the file at path.
func fileDigest(path string) (int64, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	h := xxhash.New64()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, err
	}
	return n, h.Sum64(), nil
}

// replaceFile moves src over dst. When a rename is not possible (src on
// another filesystem) the content is copied next to dst and renamed there.
func replaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		syncDir(filepath.Dir(dst))
		return nil
	}
	tmp := dst + ".tmp"
	if err := copyFile(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	syncDir(filepath.Dir(dst))
	return os.Remove(src)
}

// syncDir makes a rename in dir durable. Errors are ignored since not every
// platform supports syncing a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
