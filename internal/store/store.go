package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness
	// constraint.
	ErrConflict = errors.New("conflict")
)
