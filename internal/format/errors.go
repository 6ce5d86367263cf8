package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadMagic indicates a journal record had an unexpected magic.
	ErrBadMagic = errors.New("format: magic mismatch")
)
