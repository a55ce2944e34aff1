// Package repository implements MySQL persistence for accounts and refresh
// tokens.  Sentinel errors defined here let the service layer distinguish
// failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrEmailExists is returned when an insert or update collides with the
// unique index on accounts.email.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrTokenNotActive is returned by conditional revocation when the targeted
// refresh token is absent, already revoked, expired, or owned by a different
// account.  Under concurrent revocations of the same token exactly one
// caller succeeds; the others receive this error.
var ErrTokenNotActive = errors.New("refresh token not active")
