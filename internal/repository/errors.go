package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStatusConflict is returned when a compare-and-swap update finds the
	// ride in a different status than the caller observed.
	ErrStatusConflict = errors.New("ride status changed concurrently")
)
