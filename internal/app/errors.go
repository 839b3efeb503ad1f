package app

import "errors"

// ErrPersist and related errors describe runtime failures outside the store.
var (
	ErrPersist         = errors.New("persist snapshot")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
