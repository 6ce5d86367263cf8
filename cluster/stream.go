package cluster

import (
	"errors"
	"io"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// ErrStreamClosed is returned by every method of a closed Stream except Close.
var ErrStreamClosed = &types.Error{Kind: types.ErrKindState, Msg: "stream handle closed"}

// Stream is a handle on one logical stream. Reads and writes go through the
// stream's cluster chain; writing past the end grows the chain and SetLength
// shrinks it.
//
// A Stream must be closed. While it is open, structural operations that
// would move its index fail with a state error.
type Stream struct {
	s      *Storage
	index  int
	pos    int64
	closed bool

	// chain is valid while version matches the storage's version.
	chain   []int32
	version uint64
}

var (
	_ io.ReadWriteSeeker = (*Stream)(nil)
	_ io.ReaderAt        = (*Stream)(nil)
	_ io.WriterAt        = (*Stream)(nil)
	_ io.Closer          = (*Stream)(nil)
)

func (s *Storage) newStream(index int) *Stream {
	s.open[index]++
	return &Stream{s: s, index: index}
}

// Index returns the stream's position in the directory.
func (h *Stream) Index() int { return h.index }

// resolve returns the stream's listing and validated chain.
func (h *Stream) resolve() (format.Listing, []int32, error) {
	if h.closed {
		return format.Listing{}, nil, ErrStreamClosed
	}
	l, err := h.s.listing(h.index)
	if err != nil {
		return format.Listing{}, nil, err
	}
	if h.version != h.s.version {
		chain, err := h.s.walk(h.index, l)
		if err != nil {
			return format.Listing{}, nil, err
		}
		h.chain, h.version = chain, h.s.version
	}
	return l, h.chain, nil
}

func (h *Stream) setLength(l format.Listing, chain []int32, n uint64) error {
	chain, err := h.s.setLength(h.index, l, chain, n)
	if err != nil {
		h.version = 0
		return err
	}
	h.chain, h.version = chain, h.s.version
	return nil
}

// Len returns the logical length of the stream.
func (h *Stream) Len() (int64, error) {
	if h.closed {
		return 0, ErrStreamClosed
	}
	l, err := h.s.listing(h.index)
	if err != nil {
		return 0, err
	}
	return int64(l.Size), nil
}

// ReadAt implements io.ReaderAt.
func (h *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, types.Preconditionf("stream %d: negative offset %d", h.index, off)
	}
	l, chain, err := h.resolve()
	if err != nil {
		return 0, err
	}
	size := int64(l.Size)
	if off >= size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := int(min(int64(len(p)), size-off))
	h.s.copyOut(chain, off, p[:n])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writing past the end extends the stream;
// any gap reads as zero.
func (h *Stream) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, types.Preconditionf("stream %d: negative offset %d", h.index, off)
	}
	l, chain, err := h.resolve()
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := uint64(off) + uint64(len(p))
	if end > l.Size {
		if err := h.setLength(l, chain, end); err != nil {
			return 0, err
		}
		chain = h.chain
	}
	h.s.copyIn(chain, off, p)
	h.s.content.Delete(h.index)
	return len(p), nil
}

// Read implements io.Reader.
func (h *Stream) Read(p []byte) (int, error) {
	n, err := h.ReadAt(p, h.pos)
	h.pos += int64(n)
	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

// Write implements io.Writer.
func (h *Stream) Write(p []byte) (int, error) {
	n, err := h.WriteAt(p, h.pos)
	h.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker. Seeking past the end is allowed; a later write
// there extends the stream.
func (h *Stream) Seek(offset int64, whence int) (int64, error) {
	if h.closed {
		return 0, ErrStreamClosed
	}
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = h.pos
	case io.SeekEnd:
		size, err := h.Len()
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, types.Preconditionf("stream %d: invalid whence %d", h.index, whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, types.Preconditionf("stream %d: seek to negative position %d", h.index, pos)
	}
	h.pos = pos
	return pos, nil
}

// SetLength truncates or extends the stream to n bytes. Shrinking to zero
// returns every cluster to the free pool. The position is not changed.
func (h *Stream) SetLength(n int64) error {
	if n < 0 {
		return types.Preconditionf("stream %d: negative length %d", h.index, n)
	}
	l, chain, err := h.resolve()
	if err != nil {
		return err
	}
	return h.setLength(l, chain, uint64(n))
}

// Close releases the handle. Closing twice is a no-op.
func (h *Stream) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.chain = nil
	if h.s.open[h.index]--; h.s.open[h.index] <= 0 {
		delete(h.s.open, h.index)
	}
	return nil
}
