package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/user-auth-service/internal/model"
)

// TokenRepo persists refresh-token records.  Rows are append-only except for
// the one-shot revocation columns; nothing is ever deleted, so replayed
// tokens stay recognizable.  Revocation is a conditional update ("revoke iff
// currently active") checked through RowsAffected, which makes concurrent
// revocations of the same token resolve to exactly one winner.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// activeCond selects a row that is neither revoked nor expired.  The expiry
// boundary instant counts as expired, hence the strict comparison.
const activeCond = "revoked_at IS NULL AND expires_at > ?"

// Store inserts a new active refresh-token row.
func (r *TokenRepo) Store(ctx context.Context, t *model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (account_id, token_hash, expires_at, created_by_ip) VALUES (?,?,?,?)",
		t.AccountID, t.TokenHash, t.ExpiresAt, t.CreatedByIP)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Find returns the refresh-token row for a hash, revoked or not.  The
// service layer decides what an inactive row means.
func (r *TokenRepo) Find(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, account_id, token_hash, expires_at, created_at, created_by_ip,
		        revoked_at, revoked_by_ip, replaced_by_hash
		 FROM refresh_tokens WHERE token_hash=? LIMIT 1`,
		tokenHash).Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt,
		&t.CreatedByIP, &revokedAt, &t.RevokedByIP, &t.ReplacedByHash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return t, nil
}

// Revoke marks a token revoked iff it is currently active and owned by the
// given account.  Returns ErrTokenNotActive when the conditional update
// matches no row.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash, accountID, byIP string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=?, revoked_by_ip=? WHERE token_hash=? AND account_id=? AND "+activeCond,
		now, byIP, tokenHash, accountID, now)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return requireOneRow(res)
}

// Rotate atomically revokes the presented token and inserts its successor in
// a single transaction.  The revocation records the successor's hash as the
// replaced-by link.  When the presented token is no longer active (already
// rotated by a concurrent call, revoked, or expired) the transaction aborts
// with ErrTokenNotActive and no successor is written.
func (r *TokenRepo) Rotate(ctx context.Context, tokenHash, accountID, byIP string, now time.Time, successor *model.RefreshToken) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=?, revoked_by_ip=?, replaced_by_hash=? WHERE token_hash=? AND account_id=? AND "+activeCond,
		now, byIP, successor.TokenHash, tokenHash, accountID, now)
	if err != nil {
		return fmt.Errorf("rotate revoke: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (account_id, token_hash, expires_at, created_by_ip) VALUES (?,?,?,?)",
		successor.AccountID, successor.TokenHash, successor.ExpiresAt, successor.CreatedByIP); err != nil {
		return fmt.Errorf("rotate insert successor: %w", err)
	}
	return tx.Commit()
}

// RevokeAllForAccount revokes every active token owned by the account.
// Having nothing to revoke is not an error.
func (r *TokenRepo) RevokeAllForAccount(ctx context.Context, accountID, byIP string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=?, revoked_by_ip=? WHERE account_id=? AND "+activeCond,
		now, byIP, accountID, now)
	if err != nil {
		return fmt.Errorf("revoke account tokens: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenNotActive
	}
	return nil
}
