package serial

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/joshuapare/clusterkit/pkg/types"
)

// decoderPool provides thread-safe access to zstd decoders
var decoderPool = sync.Pool{
	New: func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	},
}

// Compressed wraps another serializer and zstd-compresses its output.
type Compressed[T any] struct {
	inner Serializer[T]
	enc   *zstd.Encoder
}

// NewCompressed returns a Compressed serializer at the given zstd level
// (1 fastest .. 22 best). Level 0 selects the library default.
func NewCompressed[T any](inner Serializer[T], level int) (*Compressed[T], error) {
	opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
	if level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("serial: create zstd encoder: %w", err)
	}
	return &Compressed[T]{inner: inner, enc: enc}, nil
}

func (c *Compressed[T]) Marshal(v T) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *Compressed[T]) Unmarshal(b []byte) (T, error) {
	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)

	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		var zero T
		return zero, types.WrapCorrupt(err, "serial: zstd decompression failed")
	}
	return c.inner.Unmarshal(raw)
}
