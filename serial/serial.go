// Package serial converts list items to and from the bytes stored in pages.
package serial

import (
	"encoding/binary"
	"slices"

	"github.com/joshuapare/clusterkit/pkg/types"
)

// Serializer converts items of type T to bytes and back.
// Implementations must be safe for concurrent use.
type Serializer[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(b []byte) (T, error)
}

// Bytes stores byte slices verbatim. Unmarshal returns a copy.
type Bytes struct{}

func (Bytes) Marshal(v []byte) ([]byte, error) { return slices.Clone(v), nil }

func (Bytes) Unmarshal(b []byte) ([]byte, error) {
	if b == nil {
		return []byte{}, nil
	}
	return slices.Clone(b), nil
}

// Uint32 stores each item as 4 little-endian bytes.
type Uint32 struct{}

func (Uint32) Marshal(v uint32) ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, v), nil
}

func (Uint32) Unmarshal(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, badWidth("uint32", 4, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Int64 stores each item as 8 little-endian bytes.
type Int64 struct{}

func (Int64) Marshal(v int64) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(v)), nil
}

func (Int64) Unmarshal(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, badWidth("int64", 8, len(b))
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func badWidth(kind string, want, got int) error {
	return types.Corruptf("serial: %s item is %d bytes, want %d", kind, got, want)
}

// Func adapts a pair of functions to a Serializer.
type Func[T any] struct {
	MarshalFunc   func(T) ([]byte, error)
	UnmarshalFunc func([]byte) (T, error)
}

func (f Func[T]) Marshal(v T) ([]byte, error) { return f.MarshalFunc(v) }

func (f Func[T]) Unmarshal(b []byte) (T, error) { return f.UnmarshalFunc(b) }
