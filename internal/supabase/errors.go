package supabase

import (
	"errors"
	"fmt"
)

// ErrAuthRequired is returned when an operation needs an owner id and got none.
var ErrAuthRequired = errors.New("User must be authenticated to upload images.")

// UploadError means the storage backend rejected an upload.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("Failed to upload image: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StoreError means the generations table could not be read or written.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s generation: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
