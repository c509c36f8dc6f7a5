package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyExists indicates a uniqueness constraint rejected the write (e.g. duplicate email).
	ErrAlreadyExists = errors.New("repository: already exists")
	// ErrUnknownDriver signals the configured store driver is not supported.
	ErrUnknownDriver = errors.New("repository: unknown driver")
)
