package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint collision.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrUnavailable indicates the backing store could not be reached in time.
	ErrUnavailable = errors.New("repository: storage unavailable")
)
