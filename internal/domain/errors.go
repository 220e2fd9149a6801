package domain

import "errors"

// Sentinel errors shared across repositories and handlers.
// Repositories map driver-level errors onto these; handlers map them
// onto HTTP status codes. Check with errors.Is().
var (
	// ErrNotFound indicates the requested record does not exist
	// or is not visible to the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a uniqueness conflict (e.g. duplicate email).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates input that fails a domain invariant.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
