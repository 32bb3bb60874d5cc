package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session ID has no stored record
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for IDs that are not UUIDs
	ErrInvalidID = errors.New("invalid session id")
	// ErrInvalidStoreType is returned for an unknown driver name
	ErrInvalidStoreType = errors.New("invalid session store type")
	// ErrInvalidConfig is returned when a driver is missing required options
	ErrInvalidConfig = errors.New("invalid session store configuration")

	errClosed = errors.New("store is closed")
)

// StorageError wraps a failure of the underlying storage medium
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session store %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, id string, err error) error {
	return &StorageError{Op: op, ID: id, Err: err}
}
