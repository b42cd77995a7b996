// Package services – HistoryService
//
// HistoryService coordinates a geolocation lookup with the caller's history:
// an authenticated lookup is recorded before the record is returned, an
// anonymous one is not. Listing and deletion pass through to the store with
// the caller's id as the scoping key.
package services

import (
	"context"
	"fmt"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/domain"
)

// HistoryStore is the subset of repo.Store used for history.
type HistoryStore interface {
	AddHistory(ctx context.Context, userID, address string, rec domain.GeoRecord) (*domain.HistoryEntry, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	DeleteHistory(ctx context.Context, userID string, ids []string) error
}

// Locator performs one geolocation lookup.
type Locator interface {
	Lookup(ctx context.Context, target string) (string, domain.GeoRecord, error)
}

// HistoryService records and serves lookup history.
type HistoryService struct {
	Store HistoryStore
	Geo   Locator
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(store HistoryStore, geo Locator) *HistoryService {
	return &HistoryService{Store: store, Geo: geo}
}

// Lookup resolves target and, when id is not nil, records the result for
// that user. The returned record is exactly what the provider answered.
func (s *HistoryService) Lookup(ctx context.Context, id *auth.Identity, target string) (string, domain.GeoRecord, error) {
	if target == "" {
		return "", domain.GeoRecord{}, ErrMissingTarget
	}
	addr, rec, err := s.Geo.Lookup(ctx, target)
	if err != nil {
		return "", domain.GeoRecord{}, err
	}
	if id != nil {
		if _, err := s.Store.AddHistory(ctx, id.UserID, addr, rec); err != nil {
			return "", domain.GeoRecord{}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	return addr, rec, nil
}

// List returns the user's most recent entries, newest first.
func (s *HistoryService) List(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	items, err := s.Store.ListHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if items == nil {
		items = []domain.HistoryEntry{}
	}
	return items, nil
}

// Delete removes the listed entries owned by userID.
func (s *HistoryService) Delete(ctx context.Context, userID string, ids []string) error {
	if err := s.Store.DeleteHistory(ctx, userID, ids); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
