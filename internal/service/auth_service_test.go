package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-auth-service/internal/model"
	"github.com/iliyamo/user-auth-service/internal/queue"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/token"
	"github.com/iliyamo/user-auth-service/internal/utils"
)

// ----- in-memory store fakes -----
//
// The fakes mirror the MySQL repositories' contract: uniqueness enforced on
// insert, revocation and rotation as compare-and-set under one lock, sentinel
// errors from the repository package.

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]model.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]model.Account{}}
}

func (m *memAccounts) Create(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.byID {
		if ex.Email == a.Email {
			return repository.ErrEmailExists
		}
	}
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (m *memAccounts) GetByID(_ context.Context, id string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (m *memAccounts) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]*model.RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{rows: map[string]*model.RefreshToken{}}
}

func (m *memTokens) Store(_ context.Context, t *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.CreatedAt = time.Now().UTC()
	m.rows[t.TokenHash] = &cp
	return nil
}

func (m *memTokens) Find(_ context.Context, hash string) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[hash]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return *t, nil
}

func (m *memTokens) Revoke(_ context.Context, hash, accountID, byIP string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revokeLocked(hash, accountID, byIP, "", now)
}

func (m *memTokens) Rotate(_ context.Context, hash, accountID, byIP string, now time.Time, successor *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.revokeLocked(hash, accountID, byIP, successor.TokenHash, now); err != nil {
		return err
	}
	cp := *successor
	cp.CreatedAt = now
	m.rows[successor.TokenHash] = &cp
	return nil
}

func (m *memTokens) RevokeAllForAccount(_ context.Context, accountID, byIP string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, t := range m.rows {
		if t.AccountID == accountID && t.Active(now) {
			_ = m.revokeLocked(hash, accountID, byIP, "", now)
		}
	}
	return nil
}

func (m *memTokens) revokeLocked(hash, accountID, byIP, replacedBy string, now time.Time) error {
	t, ok := m.rows[hash]
	if !ok || t.AccountID != accountID || !t.Active(now) {
		return repository.ErrTokenNotActive
	}
	at := now
	t.RevokedAt = &at
	t.RevokedByIP = byIP
	t.ReplacedByHash = replacedBy
	return nil
}

type memEvents struct {
	mu    sync.Mutex
	kinds []string
}

func (m *memEvents) Publish(_ context.Context, ev queue.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, ev.Kind)
	return nil
}

// ----- harness -----

type harness struct {
	svc      *AuthService
	accounts *memAccounts
	tokens   *memTokens
	events   *memEvents
	codec    *token.Codec
}

func newHarness(t *testing.T, accessTTLMin int) *harness {
	t.Helper()
	h := &harness{
		accounts: newMemAccounts(),
		tokens:   newMemTokens(),
		events:   &memEvents{},
		codec:    token.NewCodec("test-secret", "user-auth-service", "user-auth-clients", accessTTLMin, 7),
	}
	// bcrypt at minimum cost keeps the suite fast
	h.svc = NewAuthService(h.accounts, h.tokens, h.codec, utils.NewPasswordHasher(4), h.events)
	return h
}

func (h *harness) register(t *testing.T, name, email, password string) model.Account {
	t.Helper()
	acc, err := h.svc.Register(context.Background(), name, email, password)
	require.NoError(t, err)
	return acc
}

func (h *harness) login(t *testing.T, email, password string) TokenPair {
	t.Helper()
	pair, err := h.svc.Login(context.Background(), email, password, "10.0.0.1")
	require.NoError(t, err)
	return pair
}

// ----- tests -----

func TestRegisterThenLogin(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")
	assert.NotEmpty(t, acc.ID)
	assert.NotEqual(t, "pw1", acc.PasswordHash)

	pair := h.login(t, "alice@x.com", "pw1")
	assert.NotEmpty(t, pair.AccessToken)
	assert.Len(t, pair.RefreshToken, 96)
	assert.True(t, pair.AccessTokenExpiry.After(time.Now().UTC()))

	claims, err := h.codec.Parse(pair.AccessToken, false)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.Subject)

	rec, err := h.tokens.Find(context.Background(), token.HashRefreshRaw(pair.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, acc.ID, rec.AccountID)
	assert.Equal(t, "10.0.0.1", rec.CreatedByIP)
	assert.True(t, rec.Active(time.Now().UTC()))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t, 15)
	h.register(t, "Alice", "alice@x.com", "pw1")

	_, err := h.svc.Register(context.Background(), "Impostor", "alice@x.com", "different-pw")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, 1, h.accounts.count())
}

func TestRegisterInvalidEmail(t *testing.T) {
	h := newHarness(t, 15)
	for _, email := range []string{
		"",
		"no-at-sign.com",
		"@x.com",
		"alice@",
		"alice@nodot",
		"alice@x.",
		"two@@x.com",
		"spaces in@x.com",
	} {
		_, err := h.svc.Register(context.Background(), "Alice", email, "pw1")
		assert.ErrorIs(t, err, ErrEmailInvalid, "email %q", email)
	}
	// Rejected before any persistence happens.
	assert.Equal(t, 0, h.accounts.count())
}

func TestLoginFailuresAreUniform(t *testing.T) {
	h := newHarness(t, 15)
	h.register(t, "Alice", "alice@x.com", "pw1")

	_, errWrongPassword := h.svc.Login(context.Background(), "alice@x.com", "wrong", "")
	_, errUnknownEmail := h.svc.Login(context.Background(), "nobody@x.com", "pw1", "")

	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownEmail, ErrInvalidCredentials)
	// No account-enumeration signal: both failures are the same value.
	assert.Equal(t, errWrongPassword, errUnknownEmail)
}

// The canonical rotation chain: T1 -> T2 -> T3, with the rotated-away R1
// permanently refused.
func TestRefreshRotatesExactlyOnce(t *testing.T) {
	h := newHarness(t, 15)
	h.register(t, "Alice", "alice@x.com", "pw1")
	t1 := h.login(t, "alice@x.com", "pw1")

	ctx := context.Background()

	t2, err := h.svc.Refresh(ctx, t1.AccessToken, t1.RefreshToken, "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, t1.RefreshToken, t2.RefreshToken)

	// R1 is revoked and linked to its successor.
	r1, err := h.tokens.Find(ctx, token.HashRefreshRaw(t1.RefreshToken))
	require.NoError(t, err)
	require.NotNil(t, r1.RevokedAt)
	assert.Equal(t, "10.0.0.2", r1.RevokedByIP)
	assert.Equal(t, token.HashRefreshRaw(t2.RefreshToken), r1.ReplacedByHash)

	// Replaying R1 fails, with either the old or the new access token.
	_, err = h.svc.Refresh(ctx, t1.AccessToken, t1.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = h.svc.Refresh(ctx, t2.AccessToken, t1.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// The fresh pair keeps working.
	t3, err := h.svc.Refresh(ctx, t2.AccessToken, t2.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, t2.RefreshToken, t3.RefreshToken)
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	// Access tokens are minted already expired; the refresh flow must still
	// extract identity from them.
	h := newHarness(t, -1)
	h.register(t, "Alice", "alice@x.com", "pw1")
	pair := h.login(t, "alice@x.com", "pw1")

	_, err := h.codec.Parse(pair.AccessToken, false)
	require.ErrorIs(t, err, token.ErrExpired)

	next, err := h.svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEmpty(t, next.RefreshToken)
}

func TestRefreshRejectsForgedAccessToken(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")
	pair := h.login(t, "alice@x.com", "pw1")

	forger := token.NewCodec("stolen-secret", "user-auth-service", "user-auth-clients", 15, 7)
	forged, _, err := forger.IssueAccessToken(&acc)
	require.NoError(t, err)

	_, err = h.svc.Refresh(context.Background(), forged, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshRejectsForeignRefreshToken(t *testing.T) {
	h := newHarness(t, 15)
	h.register(t, "Alice", "alice@x.com", "pw1")
	h.register(t, "Bob", "bob@x.com", "pw2")
	alice := h.login(t, "alice@x.com", "pw1")
	bob := h.login(t, "bob@x.com", "pw2")

	// Bob's access token with Alice's refresh token: ownership mismatch.
	_, err := h.svc.Refresh(context.Background(), bob.AccessToken, alice.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Alice's pair is untouched by the failed attempt.
	_, err = h.svc.Refresh(context.Background(), alice.AccessToken, alice.RefreshToken, "")
	assert.NoError(t, err)
}

func TestRefreshRejectsDeletedAccount(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")
	pair := h.login(t, "alice@x.com", "pw1")

	h.accounts.delete(acc.ID)

	_, err := h.svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshRejectsExpiredRefreshToken(t *testing.T) {
	h := newHarness(t, 15)
	h.register(t, "Alice", "alice@x.com", "pw1")
	pair := h.login(t, "alice@x.com", "pw1")

	hash := token.HashRefreshRaw(pair.RefreshToken)
	boundary := h.tokens.rows[hash].ExpiresAt

	// Exactly at the expiry instant the token already counts as expired.
	h.svc.now = func() time.Time { return boundary }
	_, err := h.svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// One instant earlier it is still usable.
	h.svc.now = func() time.Time { return boundary.Add(-time.Second) }
	_, err = h.svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, "")
	assert.NoError(t, err)
}

func TestOldRefreshTokenStaysDead(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")
	t1 := h.login(t, "alice@x.com", "pw1")

	ctx := context.Background()
	t2, err := h.svc.Refresh(ctx, t1.AccessToken, t1.RefreshToken, "")
	require.NoError(t, err)

	// Revoking the successor must not resurrect its predecessor.
	require.NoError(t, h.svc.Revoke(ctx, t2.RefreshToken, "", acc.ID))

	_, err = h.svc.Refresh(ctx, t1.AccessToken, t1.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = h.svc.Refresh(ctx, t2.AccessToken, t2.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	h := newHarness(t, 15)
	h.register(t, "Alice", "alice@x.com", "pw1")
	pair := h.login(t, "alice@x.com", "pw1")

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrTokenInvalid)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRevoke(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")
	pair := h.login(t, "alice@x.com", "pw1")

	ctx := context.Background()

	// Wrong owner cannot revoke.
	err := h.svc.Revoke(ctx, pair.RefreshToken, "", "someone-else")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, h.svc.Revoke(ctx, pair.RefreshToken, "10.0.0.3", acc.ID))

	// Revocation is terminal: the second attempt fails, as does a refresh.
	err = h.svc.Revoke(ctx, pair.RefreshToken, "", acc.ID)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = h.svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRevokeUnknownToken(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")

	err := h.svc.Revoke(context.Background(), "never-issued", "", acc.ID)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRevokeAll(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")
	s1 := h.login(t, "alice@x.com", "pw1")
	s2 := h.login(t, "alice@x.com", "pw1")

	ctx := context.Background()
	require.NoError(t, h.svc.RevokeAll(ctx, acc.ID, "10.0.0.4"))

	_, err := h.svc.Refresh(ctx, s1.AccessToken, s1.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = h.svc.Refresh(ctx, s2.AccessToken, s2.RefreshToken, "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestAuditEventsPublished(t *testing.T) {
	h := newHarness(t, 15)
	acc := h.register(t, "Alice", "alice@x.com", "pw1")
	pair := h.login(t, "alice@x.com", "pw1")

	ctx := context.Background()
	next, err := h.svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken, "")
	require.NoError(t, err)
	require.NoError(t, h.svc.Revoke(ctx, next.RefreshToken, "", acc.ID))
	require.NoError(t, h.svc.RevokeAll(ctx, acc.ID, ""))

	assert.Equal(t, []string{
		queue.EventAccountRegistered,
		queue.EventTokenRotated,
		queue.EventTokenRevoked,
		queue.EventTokensRevokedAll,
	}, h.events.kinds)
}
