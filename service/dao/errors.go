package dao

import "errors"

// Sentinel errors let callers detect storage conditions with errors.Is
// instead of string matching.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates an empty or otherwise unusable key.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when a nil pointer is passed for persistence.
	ErrNilEntity = errors.New("dao: nil entity")
)
