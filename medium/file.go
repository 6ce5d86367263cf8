package medium

import "os"

// File is a Medium backed by a file on disk. On linux, darwin and freebsd the
// file is memory-mapped read-write and shared, so Bytes aliases the page
// cache; elsewhere the contents are held in memory and dirty ranges are
// written back on Flush.
type File struct {
	path    string
	f       *os.File
	data    []byte
	size    int64
	tracker *Tracker
	mode    FlushMode
}

// Path returns the path the medium was opened from.
func (m *File) Path() string { return m.path }

func (m *File) Bytes() []byte { return m.data }

func (m *File) Size() int64 { return m.size }

func (m *File) MarkDirty(off, length int) {
	m.tracker.Add(off, length)
}

// FD returns the file descriptor, or -1 when closed.
func (m *File) FD() int {
	if m == nil || m.f == nil {
		return -1
	}
	return int(m.f.Fd())
}

func openRW(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}
