package repo

import (
	"context"
	"fmt"

	"github.com/tbourn/ip-geo-backend/internal/config"
)

// Open builds the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		fs, err := OpenFileStore(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.BackendRedis:
		rdb, err := OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb), nil
	case config.BackendSQLite:
		db, err := OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("sql store: open %s: %w", cfg.DBPath, err)
		}
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("sql store: migrate: %w", err)
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("repo: unknown store backend %q", cfg.Backend)
	}
}
