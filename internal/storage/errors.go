// Package storage holds the errors shared by the persistence backends.
package storage

import "errors"

// Lookup and uniqueness errors returned by every backend.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrItemNotFound = errors.New("item not found")
)
