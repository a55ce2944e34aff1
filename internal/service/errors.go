package service

import "errors"

// Caller-visible failures of the token lifecycle.  Every authentication
// failure collapses into one of two opaque errors so that responses do not
// reveal which check failed: ErrInvalidCredentials covers both "account
// absent" and "password wrong"; ErrTokenInvalid covers forged, expired,
// revoked, replayed and foreign-owned tokens alike.
var (
	// ErrEmailInvalid means the email is syntactically unacceptable.
	ErrEmailInvalid = errors.New("invalid email format")
	// ErrEmailTaken means an account with that email already exists.
	ErrEmailTaken = errors.New("email already in use")
	// ErrInvalidCredentials means login failed; the cause is deliberately
	// not disclosed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid means a presented token was rejected; the cause is
	// deliberately not disclosed.
	ErrTokenInvalid = errors.New("invalid token")
)
