package store

import "errors"

var (
	// ErrMissingCredentials is returned when an operation needs to sign a
	// request or token but the connection string did not carry both an
	// account name and an account key.
	ErrMissingCredentials = errors.New("missing account name or account key")

	// ErrInvalidConfiguration is returned when store construction fails
	// validation before any remote call is attempted.
	ErrInvalidConfiguration = errors.New("invalid storage configuration")
)
