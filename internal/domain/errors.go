package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Infrastructure wraps these so callers can branch with errors.Is without knowing the backend.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUnavailable  = errors.New("unavailable")
)
