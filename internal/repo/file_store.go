package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/tbourn/ip-geo-backend/internal/domain"
)

// fileDocument is the on-disk layout of the file backend.
type fileDocument struct {
	Users   []domain.User         `json:"users"`
	History []domain.HistoryEntry `json:"history"`
}

// FileStore keeps the whole dataset in memory and rewrites one JSON document
// on every mutation. All access goes through mu; a failed write leaves both
// the file and the in-memory state unchanged.
type FileStore struct {
	mu   sync.Mutex
	path string
	doc   fileDocument
	clock *entryClock
}

var _ Store = (*FileStore)(nil)

// OpenFileStore loads path, creating its parent directory if needed. A missing
// file starts an empty dataset; an unreadable or corrupt one is an error.
func OpenFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file store: create dir: %w", err)
		}
	}
	s := &FileStore{path: path, clock: newEntryClock()}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("file store: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("file store: decode %s: %w", path, err)
	}
	return s, nil
}

// persist atomically replaces the document on disk with doc.
func (s *FileStore) persist(doc fileDocument) error {
	if doc.Users == nil {
		doc.Users = []domain.User{}
	}
	if doc.History == nil {
		doc.History = []domain.HistoryEntry{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file store: write: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("file store: rename: %w", err)
	}
	return nil
}

// FindUserByEmail returns the user registered under email.
func (s *FileStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	email = NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.doc.Users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// EnsureSeedUsers adds every seed whose email is not yet registered.
func (s *FileStore) EnsureSeedUsers(_ context.Context, users []SeedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{}, len(s.doc.Users))
	for _, u := range s.doc.Users {
		known[u.Email] = struct{}{}
	}
	next := append([]domain.User(nil), s.doc.Users...)
	for _, su := range users {
		email := NormalizeEmail(su.Email)
		if email == "" {
			continue
		}
		if _, ok := known[email]; ok {
			continue
		}
		known[email] = struct{}{}
		next = append(next, domain.User{
			ID:         uuid.NewString(),
			Email:      email,
			Credential: su.Credential,
			CreatedAt:  s.clock.next(),
		})
	}
	if len(next) == len(s.doc.Users) {
		return nil
	}

	doc := fileDocument{Users: next, History: s.doc.History}
	if err := s.persist(doc); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// AddHistory appends an entry and rewrites the document.
func (s *FileStore) AddHistory(_ context.Context, userID, address string, rec domain.GeoRecord) (*domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stamped under mu so append order and CreatedAt order agree.
	e := domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Address:   address,
		Payload:   rec,
		CreatedAt: s.clock.next(),
	}

	next := make([]domain.HistoryEntry, len(s.doc.History), len(s.doc.History)+1)
	copy(next, s.doc.History)
	next = append(next, e)

	doc := fileDocument{Users: s.doc.Users, History: next}
	if err := s.persist(doc); err != nil {
		return nil, err
	}
	s.doc = doc
	return &e, nil
}

// ListHistory walks the append-ordered log backwards, so results are newest first.
func (s *FileStore) ListHistory(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	limit = clampLimit(limit)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.HistoryEntry, 0)
	for i := len(s.doc.History) - 1; i >= 0 && len(out) < limit; i-- {
		if s.doc.History[i].UserID == userID {
			out = append(out, s.doc.History[i])
		}
	}
	return out, nil
}

// DeleteHistory drops the caller's entries listed in ids.
func (s *FileStore) DeleteHistory(_ context.Context, userID string, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.HistoryEntry, 0, len(s.doc.History))
	for _, e := range s.doc.History {
		if _, ok := drop[e.ID]; ok && e.UserID == userID {
			continue
		}
		next = append(next, e)
	}
	if len(next) == len(s.doc.History) {
		return nil
	}

	doc := fileDocument{Users: s.doc.Users, History: next}
	if err := s.persist(doc); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// Ping checks that the data directory is still reachable.
func (s *FileStore) Ping(context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error { return nil }
