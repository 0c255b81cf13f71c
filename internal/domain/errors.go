package domain

import "errors"

var (
	// ErrValidation marks malformed or out-of-range input. Not retryable.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown property or review id.
	ErrNotFound = errors.New("not found")
	// ErrTransaction marks a store failure inside an atomic write. The
	// transaction was rolled back, so the caller may retry.
	ErrTransaction = errors.New("transaction failed")
)
