package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable is returned for transient backend failures
	// (timeouts, lost connections). Callers may retry.
	ErrUnavailable = errors.New("storage unavailable")
)
