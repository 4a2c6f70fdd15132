// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., profile inserted twice).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates an invite token that is invalid, expired or issued for another user.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAmbiguousDirection indicates that detection resolved the source to the target language
	// and no alternative target exists among the hints.
	ErrAmbiguousDirection = errors.New("ambiguous translation direction")
)
