package storage

import (
	"errors"
	"fmt"
)

// Sentinels shared by every provider. Match them with errors.Is.
var (
	ErrNotFound     = errors.New("object not found")
	ErrKeyExists    = errors.New("object already exists at this key")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrTooLarge     = errors.New("object exceeds maximum size")
	ErrAccessDenied = errors.New("access denied")
)

// StorageError carries the provider call and photo key that failed.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTooLarge reports whether a Put stopped at PutOptions.MaxSize. The caller
// sent too much data; retrying will not help.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}

// IsGone reports whether err means there is nothing left to delete. Rollback
// and purge treat it as success.
func IsGone(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey)
}
