package batch

import "errors"

var (
	ErrInvalidConfig = errors.New("batch: invalid config")
	ErrOutOfRange    = errors.New("batch: index out of range")
	ErrNegativeToken = errors.New("batch: negative token id")
)
