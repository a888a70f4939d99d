package model

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional write found a different
	// prior value than the caller expected.
	ErrConflict = errors.New("record changed concurrently")

	// ErrProfileExists is returned when creating a profile that already exists.
	ErrProfileExists = errors.New("profile already exists")
)
