// Package services defines the business logic for sign-in, seeding and the
// lookup history. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("email and password are required")

	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike, so callers cannot tell which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingTarget is returned when no address could be determined for a
	// lookup.
	ErrMissingTarget = errors.New("ip address is required")

	// ErrPersistence wraps store failures (read or write).
	ErrPersistence = errors.New("persistence failure")
)
