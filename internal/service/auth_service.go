// Package service implements the token lifecycle: registration, login,
// refresh-with-rotation and revocation.  The service itself is stateless;
// all durable state lives behind the store interfaces, and correctness under
// concurrency is delegated to their conditional-update guarantees.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/queue"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/token"
	"github.com/iliyamo/user-auth-service/internal/utils"
)

// emailRe requires a non-empty local part, exactly one '@' and a
// dot-separated TLD.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]+$`)

// ValidEmail reports whether s passes the same syntactic check used during
// registration.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// AccountStore is the persistence abstraction for accounts.  Create must
// enforce email uniqueness atomically and report a collision as
// repository.ErrEmailExists.
type AccountStore interface {
	Create(ctx context.Context, a *model.Account) error
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id string) (model.Account, error)
}

// TokenStore is the persistence abstraction for refresh-token records.
// Revoke and Rotate must be conditional updates that succeed only while the
// targeted token is active and owned by the given account, reporting
// repository.ErrTokenNotActive otherwise.
type TokenStore interface {
	Store(ctx context.Context, t *model.RefreshToken) error
	Find(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash, accountID, byIP string, now time.Time) error
	Rotate(ctx context.Context, tokenHash, accountID, byIP string, now time.Time, successor *model.RefreshToken) error
	RevokeAllForAccount(ctx context.Context, accountID, byIP string, now time.Time) error
}

// EventPublisher forwards audit events to the message broker.  Publishing is
// strictly fire-and-forget: a broker outage must never fail a request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// TokenPair is what a successful login or refresh returns to the caller.
type TokenPair struct {
	AccessToken       string
	RefreshToken      string
	AccessTokenExpiry time.Time
}

// AuthService orchestrates accounts, the password hasher, the token codec
// and the refresh-token store.
type AuthService struct {
	accounts AccountStore
	tokens   TokenStore
	codec    *token.Codec
	hasher   utils.PasswordHasher
	events   EventPublisher // optional; nil disables publishing
	now      func() time.Time
}

// NewAuthService wires the lifecycle service.  events may be nil.
func NewAuthService(accounts AccountStore, tokens TokenStore, codec *token.Codec, hasher utils.PasswordHasher, events EventPublisher) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		codec:    codec,
		hasher:   hasher,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register validates the email, hashes the password and persists a new
// account.  No tokens are issued.  Returns ErrEmailInvalid or ErrEmailTaken
// on caller-fixable failures.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (model.Account, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if !emailRe.MatchString(email) {
		return model.Account{}, ErrEmailInvalid
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	acc := model.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, &acc); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Account{}, ErrEmailTaken
		}
		return model.Account{}, err
	}

	s.publish(ctx, queue.EventAccountRegistered, acc.ID, acc.Email, "")
	return acc, nil
}

// Login verifies credentials and, on success, mints a token pair and
// persists a new active refresh-token record bound to the account.  A
// missing account and a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (TokenPair, error) {
	acc, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if !s.hasher.Verify(acc.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}

	access, exp, err := s.codec.IssueAccessToken(&acc)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.codec.NewRefreshToken()
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.tokens.Store(ctx, &model.RefreshToken{
		AccountID:   acc.ID,
		TokenHash:   token.HashRefreshRaw(refresh.Raw),
		ExpiresAt:   refresh.Exp,
		CreatedByIP: clientIP,
	}); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh.Raw, AccessTokenExpiry: exp}, nil
}

// Refresh exchanges an expired (but genuine) access token plus its matching
// active refresh token for a fresh pair.  The presented refresh token is
// revoked and linked to its successor in one atomic store operation, so a
// replayed or concurrently reused token fails with ErrTokenInvalid.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken, clientIP string) (TokenPair, error) {
	// Signature and structure are always enforced; only the expiry check is
	// waived, since the access token is expected to be past its lifetime.
	claims, err := s.codec.Parse(accessToken, true)
	if err != nil {
		return TokenPair{}, ErrTokenInvalid
	}

	acc, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrTokenInvalid
		}
		return TokenPair{}, err
	}

	now := s.now()
	hash := token.HashRefreshRaw(refreshToken)
	rec, err := s.tokens.Find(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrTokenInvalid
		}
		return TokenPair{}, err
	}
	// Replay/reuse boundary: an already-rotated, revoked or expired token,
	// or one owned by a different account, is refused here.
	if rec.AccountID != acc.ID || !rec.Active(now) {
		return TokenPair{}, ErrTokenInvalid
	}

	access, exp, err := s.codec.IssueAccessToken(&acc)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	next, err := s.codec.NewRefreshToken()
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	successor := &model.RefreshToken{
		AccountID:   acc.ID,
		TokenHash:   token.HashRefreshRaw(next.Raw),
		ExpiresAt:   next.Exp,
		CreatedByIP: clientIP,
	}
	// The conditional rotate is the arbiter under concurrency: of two
	// refresh calls presenting the same token, exactly one wins.
	if err := s.tokens.Rotate(ctx, hash, acc.ID, clientIP, now, successor); err != nil {
		if errors.Is(err, repository.ErrTokenNotActive) {
			return TokenPair{}, ErrTokenInvalid
		}
		return TokenPair{}, err
	}

	s.publish(ctx, queue.EventTokenRotated, acc.ID, acc.Email, clientIP)
	return TokenPair{AccessToken: access, RefreshToken: next.Raw, AccessTokenExpiry: exp}, nil
}

// Revoke marks a single refresh token revoked (logout of one session).  The
// token must exist, belong to the account and still be active; all other
// cases collapse into ErrTokenInvalid.
func (s *AuthService) Revoke(ctx context.Context, refreshToken, clientIP, accountID string) error {
	now := s.now()
	hash := token.HashRefreshRaw(refreshToken)
	rec, err := s.tokens.Find(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	if rec.AccountID != accountID || !rec.Active(now) {
		return ErrTokenInvalid
	}
	if err := s.tokens.Revoke(ctx, hash, accountID, clientIP, now); err != nil {
		if errors.Is(err, repository.ErrTokenNotActive) {
			return ErrTokenInvalid
		}
		return err
	}

	s.publish(ctx, queue.EventTokenRevoked, accountID, "", clientIP)
	return nil
}

// RevokeAll revokes every active refresh token of the account (logout
// everywhere).  Revoking an account with no active tokens is a no-op.
func (s *AuthService) RevokeAll(ctx context.Context, accountID, clientIP string) error {
	if err := s.tokens.RevokeAllForAccount(ctx, accountID, clientIP, s.now()); err != nil {
		return err
	}
	s.publish(ctx, queue.EventTokensRevokedAll, accountID, "", clientIP)
	return nil
}

// publish sends an audit event when a publisher is configured.  Failures are
// logged and dropped so the request path is never coupled to the broker.
func (s *AuthService) publish(ctx context.Context, kind, accountID, email, clientIP string) {
	if s.events == nil {
		return
	}
	ev := queue.AuthEvent{
		Kind:       kind,
		AccountID:  accountID,
		Email:      email,
		ClientIP:   clientIP,
		OccurredAt: s.now().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("auth-events: publish %s failed: %v", kind, err)
	}
}
