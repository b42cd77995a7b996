package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/ip-geo-backend/internal/domain"
)

// SQLStore implements Store on top of GORM. All functions are context-aware;
// ownership is enforced in every WHERE clause.
type SQLStore struct {
	db    *gorm.DB
	clock *entryClock
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps a migrated *gorm.DB.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, clock: newEntryClock()}
}

// FindUserByEmail fetches a single user by normalized email.
func (s *SQLStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureSeedUsers inserts seeds, skipping emails that already exist.
func (s *SQLStore) EnsureSeedUsers(ctx context.Context, users []SeedUser) error {
	rows := make([]domain.User, 0, len(users))
	for _, su := range users {
		email := NormalizeEmail(su.Email)
		if email == "" {
			continue
		}
		rows = append(rows, domain.User{
			ID:         uuid.NewString(),
			Email:      email,
			Credential: su.Credential,
			CreatedAt:  s.clock.next(),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("sql store: seed users: %w", err)
	}
	return nil
}

// AddHistory inserts a new entry with a UUID primary key and UTC timestamp.
func (s *SQLStore) AddHistory(ctx context.Context, userID, address string, rec domain.GeoRecord) (*domain.HistoryEntry, error) {
	e := &domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Address:   address,
		Payload:   rec,
		CreatedAt: s.clock.next(),
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, fmt.Errorf("sql store: add history: %w", err)
	}
	return e, nil
}

// ListHistory returns the user's entries ordered by creation time descending.
func (s *SQLStore) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	out := make([]domain.HistoryEntry, 0)
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("rowid desc").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("sql store: list history: %w", err)
	}
	return out, nil
}

// DeleteHistory deletes rows whose id is in ids and whose owner is userID.
func (s *SQLStore) DeleteHistory(ctx context.Context, userID string, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&domain.HistoryEntry{}).Error
	if err != nil {
		return fmt.Errorf("sql store: delete history: %w", err)
	}
	return nil
}

// Ping checks the underlying connection pool.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
