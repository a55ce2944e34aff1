// Package token implements the access-token codec and refresh-token
// generation.  Access tokens are HS256 JWTs carrying the account identity;
// refresh tokens are opaque random strings with no embedded claims, stored
// server-side only as SHA-256 hashes.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/user-auth-service/internal/model"
)

// Parse failures are surfaced distinctly so callers can react differently to
// an expired-but-genuine token versus a forged one.
var (
	// ErrMalformed means the token is not structurally a usable JWT (bad
	// segments, missing subject or expiry claim).
	ErrMalformed = errors.New("token malformed")
	// ErrSignature means the token failed cryptographic or origin checks:
	// wrong signature, wrong algorithm, or foreign issuer/audience.
	ErrSignature = errors.New("token signature invalid")
	// ErrExpired means the token is genuine but its lifetime has elapsed.
	// Only returned when expiry enforcement is requested.
	ErrExpired = errors.New("token expired")
)

// Claims are the statements carried inside an access token.  Subject holds
// the account ID; Name and Email are identity claims for downstream
// consumers.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RefreshToken pairs a freshly generated opaque token string with its
// expiration time.  The Raw value is returned to the client exactly once;
// the database keeps only HashRefreshRaw(Raw).
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Codec signs and validates access tokens and generates refresh-token
// strings.  All key material and token lifetimes are injected at
// construction; the codec reads no ambient state.
type Codec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec builds a Codec from the configured signing secret, issuer,
// audience and token lifetimes.
func NewCodec(secret, issuer, audience string, accessTTLMin, refreshTTLDays int) *Codec {
	return &Codec{
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  time.Duration(accessTTLMin) * time.Minute,
		refreshTTL: time.Duration(refreshTTLDays) * 24 * time.Hour,
	}
}

// IssueAccessToken signs an HS256 JWT for the account with issued-at = now
// and the configured access lifetime.  It returns the serialized token and
// its expiration time.
func (c *Codec) IssueAccessToken(a *model.Account) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(c.accessTTL)
	claims := &Claims{
		Name:  a.Name,
		Email: a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies an access token and returns its claims.  Signature,
// structure, issuer and audience are always checked; the expiry constraint
// is enforced only when allowExpired is false.  The refresh flow uses
// allowExpired=true to extract identity from an expired access token
// without ever accepting a forged one.
func (c *Codec) Parse(raw string, allowExpired bool) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// Temporal claims are validated by hand below so that expiry can be
		// checked independently of signature validity.
		jwt.WithoutClaimsValidation(),
	)
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	default:
		return nil, ErrSignature
	}
	if !tok.Valid {
		return nil, ErrSignature
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}
	if claims.Issuer != c.issuer || !hasAudience(claims.Audience, c.audience) {
		return nil, ErrSignature
	}
	if !allowExpired && !time.Now().UTC().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	return claims, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.  Refresh tokens live longer than access tokens and
// are pure lookup keys: they carry no claims.
func (c *Codec) NewRefreshToken() (RefreshToken, error) {
	raw, err := randomHex(48) // 48 bytes -> 96 hex chars, 384 bits of entropy
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(c.refreshTTL),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a hex
// string.  Storing only the hash prevents attackers from using stolen
// database entries to refresh sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
