package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tbourn/ip-geo-backend/internal/domain"
)

// Key layout:
//
//	user:email:<email>      JSON user
//	history:<id>            JSON history entry
//	history:list:<userId>   list of entry ids, newest at the head
const (
	userKeyPrefix    = "user:email:"
	historyKeyPrefix = "history:"
	historyListKey   = "history:list:"
)

// RedisStore persists users and history in Redis. Insert and delete are
// applied as a single MULTI/EXEC so the entry and its list index never diverge.
type RedisStore struct {
	rdb   *redis.Client
	clock *entryClock
}

var _ Store = (*RedisStore)(nil)

// OpenRedis parses url (redis:// or rediss://), connects and pings with a
// short timeout.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis store: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an already connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, clock: newEntryClock()}
}

func userKey(email string) string     { return userKeyPrefix + email }
func historyKey(id string) string     { return historyKeyPrefix + id }
func historyListOf(uid string) string { return historyListKey + uid }

// FindUserByEmail loads the user stored under the normalized email.
func (s *RedisStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	val, err := s.rdb.Get(ctx, userKey(NormalizeEmail(email))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal([]byte(val), &u); err != nil {
		return nil, fmt.Errorf("redis store: decode user: %w", err)
	}
	return &u, nil
}

// EnsureSeedUsers writes each seed with SETNX, so concurrent seeders cannot
// overwrite one another.
func (s *RedisStore) EnsureSeedUsers(ctx context.Context, users []SeedUser) error {
	for _, su := range users {
		email := NormalizeEmail(su.Email)
		if email == "" {
			continue
		}
		b, err := json.Marshal(domain.User{
			ID:         uuid.NewString(),
			Email:      email,
			Credential: su.Credential,
			CreatedAt:  s.clock.next(),
		})
		if err != nil {
			return fmt.Errorf("redis store: encode user: %w", err)
		}
		if err := s.rdb.SetNX(ctx, userKey(email), b, 0).Err(); err != nil {
			return fmt.Errorf("redis store: seed user: %w", err)
		}
	}
	return nil
}

// AddHistory stores the entry and pushes its id onto the user's list.
func (s *RedisStore) AddHistory(ctx context.Context, userID, address string, rec domain.GeoRecord) (*domain.HistoryEntry, error) {
	e := domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Address:   address,
		Payload:   rec,
		CreatedAt: s.clock.next(),
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("redis store: encode entry: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, historyKey(e.ID), b, 0)
		p.LPush(ctx, historyListOf(userID), e.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis store: add history: %w", err)
	}
	return &e, nil
}

// ListHistory reads the head of the user's list, resolves each id and orders
// the result by CreatedAt descending. Concurrent writers can push ids in a
// different order than they were stamped, so list position is not trusted
// for ordering. Ids whose entry is gone are skipped.
func (s *RedisStore) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	limit = clampLimit(limit)
	ids, err := s.rdb.LRange(ctx, historyListOf(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: list history: %w", err)
	}
	out := make([]domain.HistoryEntry, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	entries, err := s.loadEntries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e != nil && e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// loadEntries fetches entries for ids in order; missing ones are nil.
func (s *RedisStore) loadEntries(ctx context.Context, ids []string) ([]*domain.HistoryEntry, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = historyKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis store: load entries: %w", err)
	}
	out := make([]*domain.HistoryEntry, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("redis store: decode entry %s: %w", ids[i], err)
		}
		out[i] = &e
	}
	return out, nil
}

// DeleteHistory removes the caller's entries and their list references.
func (s *RedisStore) DeleteHistory(ctx context.Context, userID string, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	entries, err := s.loadEntries(ctx, ids)
	if err != nil {
		return err
	}
	owned := make([]string, 0, len(ids))
	for i, e := range entries {
		if e != nil && e.UserID == userID {
			owned = append(owned, ids[i])
		}
	}
	if len(owned) == 0 {
		return nil
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range owned {
			p.LRem(ctx, historyListOf(userID), 0, id)
			p.Del(ctx, historyKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store: delete history: %w", err)
	}
	return nil
}

// Ping round-trips to the server.
func (s *RedisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

// Close closes the client connection pool.
func (s *RedisStore) Close() error { return s.rdb.Close() }
