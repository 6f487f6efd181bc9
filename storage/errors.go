package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for a key. Storage
	// implementations translate the errors of their backend into it, callers
	// never see badger.ErrKeyNotFound.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a record would overwrite another one.
	ErrAlreadyExists = errors.New("already exists")
)
