package storage

import "errors"

// Sentinel errors returned by storage implementations.
var (
	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input record is malformed.
	ErrInvalidInput = errors.New("invalid input")
)
