// Package repo implements the persistence layer for users and lookup history.
//
// Three interchangeable backends satisfy Store:
//
//   - FileStore:  a single JSON document on local disk (development).
//   - RedisStore: a remote key-value store (go-redis).
//   - SQLStore:   SQLite through GORM (pure Go driver).
//
// The backend is chosen once at startup (see Open) and never switched at
// runtime. Every backend normalizes emails the same way, returns history newest
// first, and scopes reads and deletes to the owning user.
//
// Error semantics:
//   - A missing user yields ErrNotFound.
//   - Storage failures (I/O, network, constraint violations) are returned
//     wrapped; callers treat them as internal errors.
package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/ip-geo-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so SQL and non-SQL backends share one
// sentinel.
var ErrNotFound = gorm.ErrRecordNotFound

// MaxHistoryPage bounds a single history listing.
const MaxHistoryPage = 100

// SeedUser is a user to create when absent. Credential is stored as given:
// callers decide whether it is a bcrypt hash or plaintext.
type SeedUser struct {
	Email      string
	Credential string
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// FindUserByEmail returns the user for email (case-insensitive) or ErrNotFound.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// EnsureSeedUsers creates the given users if no user with that email exists.
	// Existing users are never overwritten.
	EnsureSeedUsers(ctx context.Context, users []SeedUser) error
	// AddHistory records a lookup for userID and returns the stored entry.
	AddHistory(ctx context.Context, userID, address string, rec domain.GeoRecord) (*domain.HistoryEntry, error)
	// ListHistory returns up to limit entries for userID, newest first.
	// limit <= 0 or above MaxHistoryPage is treated as MaxHistoryPage.
	ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	// DeleteHistory removes the entries in ids owned by userID. Ids that do not
	// exist or belong to someone else are ignored.
	DeleteHistory(ctx context.Context, userID string, ids []string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

var emailFolder = cases.Lower(language.Und)

// NormalizeEmail trims and lower-cases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxHistoryPage {
		return MaxHistoryPage
	}
	return limit
}

// dedupe drops empty and repeated ids, keeping first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// entryClock hands out strictly increasing UTC timestamps at microsecond
// precision, the finest every backend round-trips. Stamps are unique per
// store instance, so CreatedAt alone orders a user's history.
type entryClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newEntryClock() *entryClock {
	return &entryClock{now: time.Now}
}

func (c *entryClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
