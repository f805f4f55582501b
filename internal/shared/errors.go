package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing, malformed or expired session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates an authenticated actor lacks the permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable marks transient document store or cache failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvariantViolation signals a broken data invariant such as a circle cycle.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrValidation wraps rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a natural key already exists.
	ErrConflict = errors.New("conflict")
)
