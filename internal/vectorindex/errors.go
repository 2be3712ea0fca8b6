package vectorindex

import "errors"

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCorruptIndex      = errors.New("corrupt index file")
)
