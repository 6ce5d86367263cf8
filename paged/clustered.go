package paged

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/joshuapare/clusterkit/cluster"
	"github.com/joshuapare/clusterkit/pkg/types"
	"github.com/joshuapare/clusterkit/serial"
)

const (
	pageHeaderSize = 4 // item count, u32
	itemHeaderSize = 4 // item length, u32
)

// ClusteredStore keeps page k in stream k of a cluster.Storage. A page
// stream is laid out as
//
//	[count u32] ([length u32][item bytes])*
//
// with little-endian integers. Capacity and sizes are measured in bytes,
// excluding the page header.
type ClusteredStore[T any] struct {
	storage   *cluster.Storage
	ser       serial.Serializer[T]
	pageBytes int
}

// NewClusteredStore returns a store whose pages occupy at most pageBytes
// bytes each.
func NewClusteredStore[T any](storage *cluster.Storage, ser serial.Serializer[T], pageBytes int) (*ClusteredStore[T], error) {
	if storage == nil || ser == nil {
		return nil, types.Preconditionf("clustered store needs a storage and a serializer")
	}
	if pageBytes <= pageHeaderSize+itemHeaderSize {
		return nil, types.Preconditionf("page size %d too small", pageBytes)
	}
	return &ClusteredStore[T]{storage: storage, ser: ser, pageBytes: pageBytes}, nil
}

// NewClustered returns a list whose pages live in storage. Call Load before
// using it.
func NewClustered[T any](storage *cluster.Storage, ser serial.Serializer[T], pageBytes int, opts Options) (*List[T], error) {
	store, err := NewClusteredStore(storage, ser, pageBytes)
	if err != nil {
		return nil, err
	}
	return New[T](store, opts), nil
}

func (c *ClusteredStore[T]) Capacity() int { return c.pageBytes - pageHeaderSize }

func (c *ClusteredStore[T]) ItemSize(item T) (int, error) {
	b, err := c.ser.Marshal(item)
	if err != nil {
		return 0, err
	}
	return itemHeaderSize + len(b), nil
}

func (c *ClusteredStore[T]) RequiresLoad() bool { return true }

func (c *ClusteredStore[T]) Pages() ([]PageMeta, error) {
	out := make([]PageMeta, c.storage.Count())
	var hdr [pageHeaderSize]byte
	for i := range out {
		meta, err := c.meta(i, hdr[:])
		if err != nil {
			return nil, err
		}
		out[i] = meta
	}
	return out, nil
}

func (c *ClusteredStore[T]) meta(number int, hdr []byte) (PageMeta, error) {
	h, err := c.storage.Open(number)
	if err != nil {
		return PageMeta{}, err
	}
	defer h.Close()
	size, err := h.Len()
	if err != nil {
		return PageMeta{}, err
	}
	if size == 0 {
		return PageMeta{}, nil
	}
	if _, err := h.ReadAt(hdr, 0); err != nil {
		if errors.Is(err, io.EOF) {
			return PageMeta{}, types.Corruptf("page %d: stream of %d bytes has no header", number, size)
		}
		return PageMeta{}, err
	}
	return PageMeta{
		Count: int(binary.LittleEndian.Uint32(hdr)),
		Size:  int(size) - pageHeaderSize,
	}, nil
}

func (c *ClusteredStore[T]) Create(number int) error {
	if number != c.storage.Count() {
		return types.Unsupportedf("clustered store: create page %d, next page is %d", number, c.storage.Count())
	}
	_, err := c.storage.AddBytes(make([]byte, pageHeaderSize))
	return err
}

func (c *ClusteredStore[T]) Delete(number int) error {
	if number != c.storage.Count()-1 {
		return types.Unsupportedf("clustered store: delete page %d, last page is %d", number, c.storage.Count()-1)
	}
	return c.storage.Remove(number)
}

func (c *ClusteredStore[T]) Load(number int) ([]T, error) {
	data, err := c.storage.ReadAll(number)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < pageHeaderSize {
		return nil, types.Corruptf("page %d: %d bytes is shorter than the page header", number, len(data))
	}
	count := int(binary.LittleEndian.Uint32(data))
	items := make([]T, 0, min(count, len(data)/itemHeaderSize))
	pos := pageHeaderSize
	for k := range count {
		if pos+itemHeaderSize > len(data) {
			return nil, types.Corruptf("page %d: item %d header beyond page end", number, k)
		}
		n := int(binary.LittleEndian.Uint32(data[pos:]))
		pos += itemHeaderSize
		if n > len(data)-pos {
			return nil, types.Corruptf("page %d: item %d of %d bytes beyond page end", number, k, n)
		}
		item, err := c.ser.Unmarshal(data[pos : pos+n])
		if err != nil {
			return nil, types.WrapCorrupt(err, "page %d: item %d", number, k)
		}
		items = append(items, item)
		pos += n
	}
	if pos != len(data) {
		return nil, types.Corruptf("page %d: %d trailing bytes", number, len(data)-pos)
	}
	return items, nil
}

func (c *ClusteredStore[T]) Save(number int, items []T) error {
	data := binary.LittleEndian.AppendUint32(make([]byte, 0, c.pageBytes), uint32(len(items)))
	for _, item := range items {
		b, err := c.ser.Marshal(item)
		if err != nil {
			return err
		}
		data = binary.LittleEndian.AppendUint32(data, uint32(len(b)))
		data = append(data, b...)
	}
	if len(data) > c.pageBytes {
		return types.Capacityf("page %d: %d bytes exceed page size %d", number, len(data), c.pageBytes)
	}

	h, err := c.storage.Open(number)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.SetLength(int64(len(data))); err != nil {
		return err
	}
	_, err = h.WriteAt(data, 0)
	return err
}
