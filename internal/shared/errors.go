package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input rejected before persistence.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a missing or invalid bearer credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller role may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrConfiguration indicates required server-side configuration is absent.
	ErrConfiguration = errors.New("configuration error")
)
