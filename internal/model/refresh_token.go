package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each token
// belongs to an account and carries metadata for expiry, revocation and the
// rotation chain.  The plain token is never stored; only its SHA-256 hash.
// Rows are never deleted: revoked entries remain so that a replayed token
// can be recognized and refused.
//
// Fields:
//
//	ID             – primary key identifier.
//	AccountID      – owner of the token.
//	TokenHash      – SHA-256 hex digest of the token value.
//	ExpiresAt      – expiration timestamp of the token.
//	CreatedAt      – timestamp of creation.
//	CreatedByIP    – network origin the token was issued to (advisory).
//	RevokedAt      – when the token was revoked (nil while active).
//	RevokedByIP    – network origin that requested revocation (advisory).
//	ReplacedByHash – hash of the successor token minted during rotation.
type RefreshToken struct {
	ID             uint64     // refresh_tokens.id
	AccountID      string     // refresh_tokens.account_id
	TokenHash      string     // refresh_tokens.token_hash
	ExpiresAt      time.Time  // refresh_tokens.expires_at
	CreatedAt      time.Time  // refresh_tokens.created_at
	CreatedByIP    string     // refresh_tokens.created_by_ip
	RevokedAt      *time.Time // refresh_tokens.revoked_at (nullable)
	RevokedByIP    string     // refresh_tokens.revoked_by_ip
	ReplacedByHash string     // refresh_tokens.replaced_by_hash
}

// Expired reports whether the token's lifetime has elapsed at the given
// instant.  The boundary instant counts as expired.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the token can still be presented: not revoked and
// not expired.  Revocation is terminal; an inactive token never becomes
// active again.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && !t.Expired(now)
}
