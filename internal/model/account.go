package model

import "time"

// Account represents an identity record as stored in the `accounts` table.
// The json tags are omitted because these structs are used internally by the
// repository layer; handlers define separate response types with appropriate
// JSON tags.
//
// Fields:
//
//	ID           – UUID primary key of the account.
//	Name         – display name.
//	Email        – unique email address, matched exactly as stored.
//	PasswordHash – bcrypt hashed password, never reversible.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type Account struct {
	ID           string    // accounts.id
	Name         string    // accounts.name
	Email        string    // accounts.email
	PasswordHash string    // accounts.password_hash
	CreatedAt    time.Time // accounts.created_at
	UpdatedAt    time.Time // accounts.updated_at
}
