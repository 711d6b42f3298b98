package storage

import "errors"

// Storage errors.
var (
	// ErrInvalidInput is returned when input validation fails.
	// The whole batch is rejected and nothing is written.
	ErrInvalidInput = errors.New("invalid input")
)
