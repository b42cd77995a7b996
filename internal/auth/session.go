// Package auth issues and verifies signed session tokens, extracts them from
// incoming requests, and checks stored password credentials.
//
// A session token is an HS256 JWT carrying the user id (sub) and email. It is
// stateless: validity is decided by signature and expiry alone, so logout only
// removes the client-side cookie.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for every verification failure: missing,
// malformed, tampered, wrongly signed, or expired tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the caller recovered from a valid session token.
type Identity struct {
	UserID string
	Email  string
}

// Claims is the JWT payload of a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens with a shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager returns a Manager signing with secret; tokens expire after ttl.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue creates a signed token for the given user and returns it together
// with its expiry.
func (m *Manager) Issue(userID, email string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("auth: empty user id")
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return tok, exp, nil
}

// Verify checks signature, algorithm and expiry and returns the identity the
// token was issued for. Any failure yields ErrUnauthorized.
func (m *Manager) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
