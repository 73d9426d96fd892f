package storage

import "errors"

// Common client storage errors
var (
	// ErrCredentialsNotFound indicates that no credential record exists
	ErrCredentialsNotFound = errors.New("credential record not found")

	// ErrAttemptsNotFound indicates that no attempt counter exists for the login
	ErrAttemptsNotFound = errors.New("login attempts not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
