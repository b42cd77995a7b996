package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/domain"
	"github.com/tbourn/ip-geo-backend/internal/geo"
)

// ----- Fakes -----

type fakeHistory struct {
	addUser, addAddr string
	addRec           domain.GeoRecord
	addCalls         int
	addErr           error

	listUser  string
	listLimit int
	listItems []domain.HistoryEntry
	listErr   error

	delUser string
	delIDs  []string
	delErr  error
}

func (f *fakeHistory) AddHistory(ctx context.Context, userID, address string, rec domain.GeoRecord) (*domain.HistoryEntry, error) {
	f.addCalls++
	f.addUser, f.addAddr, f.addRec = userID, address, rec
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &domain.HistoryEntry{ID: "h1", UserID: userID, Address: address, Payload: rec}, nil
}

func (f *fakeHistory) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	f.listUser, f.listLimit = userID, limit
	return f.listItems, f.listErr
}

func (f *fakeHistory) DeleteHistory(ctx context.Context, userID string, ids []string) error {
	f.delUser, f.delIDs = userID, ids
	return f.delErr
}

type fakeLocator struct {
	addr string
	rec  domain.GeoRecord
	err  error
}

func (f *fakeLocator) Lookup(ctx context.Context, target string) (string, domain.GeoRecord, error) {
	if f.err != nil {
		return "", domain.GeoRecord{}, f.err
	}
	addr := f.addr
	if addr == "" {
		addr = target
	}
	return addr, f.rec, nil
}

// ----- Tests -----

func TestHistoryLookup_RecordsOnlyWhenAuthenticated(t *testing.T) {
	ctx := context.Background()
	rec := domain.GeoRecord{Address: "8.8.8.8", Country: "US"}
	store := &fakeHistory{}
	svc := NewHistoryService(store, &fakeLocator{rec: rec})

	addr, got, err := svc.Lookup(ctx, nil, "8.8.8.8")
	if err != nil || addr != "8.8.8.8" || got != rec {
		t.Fatalf("anonymous lookup: %v %q %+v", err, addr, got)
	}
	if store.addCalls != 0 {
		t.Fatalf("anonymous lookup must not be recorded")
	}

	_, got, err = svc.Lookup(ctx, &auth.Identity{UserID: "u1"}, "8.8.8.8")
	if err != nil || got != rec {
		t.Fatalf("authenticated lookup: %v %+v", err, got)
	}
	if store.addCalls != 1 || store.addUser != "u1" || store.addAddr != "8.8.8.8" || store.addRec != rec {
		t.Fatalf("unexpected write: %+v", store)
	}
}

func TestHistoryLookup_RecordsSubstitutedAddress(t *testing.T) {
	store := &fakeHistory{}
	svc := NewHistoryService(store, &fakeLocator{addr: "203.0.113.7"})
	addr, _, err := svc.Lookup(context.Background(), &auth.Identity{UserID: "u1"}, "127.0.0.1")
	if err != nil || addr != "203.0.113.7" || store.addAddr != "203.0.113.7" {
		t.Fatalf("expected substituted address, got %q / %q (%v)", addr, store.addAddr, err)
	}
}

func TestHistoryLookup_Errors(t *testing.T) {
	ctx := context.Background()
	id := &auth.Identity{UserID: "u1"}

	if _, _, err := NewHistoryService(&fakeHistory{}, &fakeLocator{}).Lookup(ctx, id, ""); !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("missing target: %v", err)
	}

	store := &fakeHistory{}
	_, _, err := NewHistoryService(store, &fakeLocator{err: geo.ErrUpstream}).Lookup(ctx, id, "8.8.8.8")
	if !errors.Is(err, geo.ErrUpstream) || store.addCalls != 0 {
		t.Fatalf("upstream failure: %v (writes=%d)", err, store.addCalls)
	}

	_, _, err = NewHistoryService(&fakeHistory{addErr: errors.New("disk")}, &fakeLocator{}).Lookup(ctx, id, "8.8.8.8")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("write failure must propagate, got %v", err)
	}
}

func TestHistoryList_And_Delete(t *testing.T) {
	ctx := context.Background()
	store := &fakeHistory{}
	svc := NewHistoryService(store, &fakeLocator{})

	items, err := svc.List(ctx, "u1", 5)
	if err != nil || items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", items, err)
	}
	if store.listUser != "u1" || store.listLimit != 5 {
		t.Fatalf("list args: %+v", store)
	}

	if err := svc.Delete(ctx, "u1", []string{"a", "b"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.delUser != "u1" || len(store.delIDs) != 2 {
		t.Fatalf("delete args: %+v", store)
	}

	store.listErr = errors.New("boom")
	store.delErr = errors.New("boom")
	if _, err := svc.List(ctx, "u1", 0); !errors.Is(err, ErrPersistence) {
		t.Fatalf("list error: %v", err)
	}
	if err := svc.Delete(ctx, "u1", []string{"a"}); !errors.Is(err, ErrPersistence) {
		t.Fatalf("delete error: %v", err)
	}
}
