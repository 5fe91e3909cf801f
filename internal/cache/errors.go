package cache

import "errors"

var (
	ErrInvalidConfig = errors.New("cache: invalid config")
	ErrDimension     = errors.New("cache: hidden state dimension mismatch")
	ErrTokenRange    = errors.New("cache: token outside distribution")
)
