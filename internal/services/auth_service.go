// Package services – AuthService
//
// AuthService checks email/password pairs against the credential store and
// issues session tokens. It also seeds the demo accounts, hashing their
// passwords with bcrypt unless plaintext storage is explicitly requested.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/domain"
	"github.com/tbourn/ip-geo-backend/internal/repo"
)

// UserStore is the subset of repo.Store used for authentication.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	EnsureSeedUsers(ctx context.Context, users []repo.SeedUser) error
}

// SessionIssuer signs session tokens.
type SessionIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

// Credentials is a plaintext email/password pair.
type Credentials struct {
	Email    string
	Password string
}

// DefaultSeedUsers are the demo accounts created on first start.
func DefaultSeedUsers() []Credentials {
	return []Credentials{
		{Email: "user1@example.com", Password: "password1"},
		{Email: "user2@example.com", Password: "password2"},
		{Email: "user3@example.com", Password: "password3"},
	}
}

// ParseCredentials reads a comma-separated list of email:password pairs.
// The password is everything after the first colon.
func ParseCredentials(s string) ([]Credentials, error) {
	var out []Credentials
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, password, ok := strings.Cut(pair, ":")
		email = strings.TrimSpace(email)
		if !ok || email == "" || password == "" {
			return nil, fmt.Errorf("malformed credential %q: want email:password", email)
		}
		out = append(out, Credentials{Email: email, Password: password})
	}
	if len(out) == 0 {
		return nil, ErrMissingCredentials
	}
	return out, nil
}

// Session is the outcome of a successful login.
type Session struct {
	User      domain.PublicUser
	Token     string
	ExpiresAt time.Time
}

// AuthService authenticates users and seeds demo accounts.
type AuthService struct {
	Users    UserStore
	Sessions SessionIssuer
	Hasher   *auth.Hasher

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService.
func NewAuthService(users UserStore, sessions SessionIssuer, hasher *auth.Hasher) *AuthService {
	return &AuthService{Users: users, Sessions: sessions, Hasher: hasher}
}

// Login verifies the pair and returns a fresh session. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	u, err := s.Users.FindUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		// Pay for a bcrypt comparison anyway so response time does not
		// reveal whether the account exists.
		auth.VerifyPassword(s.dummyCredential(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !auth.VerifyPassword(u.Credential, password) {
		return nil, ErrInvalidCredentials
	}

	tok, exp, err := s.Sessions.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &Session{User: u.Public(), Token: tok, ExpiresAt: exp}, nil
}

// dummyCredential is a bcrypt hash at the configured cost, computed once.
func (s *AuthService) dummyCredential() string {
	s.dummyOnce.Do(func() {
		h := s.Hasher
		if h == nil {
			h = auth.NewHasher(0)
		}
		s.dummyHash, _ = h.Hash("ip-geo-unknown-account")
	})
	return s.dummyHash
}

// Seed creates the given accounts when absent. With hash set, passwords are
// stored as bcrypt hashes; otherwise they are stored as given.
func (s *AuthService) Seed(ctx context.Context, users []Credentials, hash bool) error {
	seeds := make([]repo.SeedUser, 0, len(users))
	for _, c := range users {
		cred := c.Password
		if hash {
			h, err := s.Hasher.Hash(c.Password)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", c.Email, err)
			}
			cred = h
		}
		seeds = append(seeds, repo.SeedUser{Email: c.Email, Credential: cred})
	}
	if err := s.Users.EnsureSeedUsers(ctx, seeds); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
