package db

import "errors"

var (
	// ErrDuplicateHostname is returned when a hostname is already registered,
	// by any tenant. The constraint is global to prevent hijacking.
	ErrDuplicateHostname = errors.New("hostname is already registered")

	// ErrNotFound covers both a missing domain and a domain owned by another
	// tenant. Callers must not be able to tell the two apart.
	ErrNotFound = errors.New("domain not found")

	// ErrInvalidState is returned when a domain that has not proven ownership
	// is promoted to primary.
	ErrInvalidState = errors.New("domain is not verified")
)
