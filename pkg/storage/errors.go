package storage

import "errors"

var (
	// ErrNotFound is returned when a node or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a node or edge whose ID
	// is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidID is returned when an operation receives an empty ID.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidData is returned when an operation receives a nil node
	// or edge.
	ErrInvalidData = errors.New("invalid data")

	// ErrStorageClosed is returned by operations on a closed engine.
	ErrStorageClosed = errors.New("storage is closed")
)
