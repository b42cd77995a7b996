// Command seed creates user accounts in the configured store without
// starting the server. Existing accounts are left untouched, so it is safe
// to run repeatedly.
//
//	go run ./cmd/seed -users "alice@example.com:s3cret,bob@example.com:hunter2"
//
// Without -users (or SEED_USERS) the three demo accounts are created.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/config"
	"github.com/tbourn/ip-geo-backend/internal/repo"
	"github.com/tbourn/ip-geo-backend/internal/services"
	"github.com/tbourn/ip-geo-backend/internal/sysutil"
)

type options struct {
	users           string // -users, falling back to SEED_USERS
	plain           bool
	allowProduction bool // SEED_ALLOW_PRODUCTION
}

func main() {
	users := flag.String("users", "", "comma-separated email:password pairs (default: SEED_USERS, then the demo accounts)")
	plain := flag.Bool("plain", false, "store passwords as plaintext instead of bcrypt hashes")
	flag.Parse()

	if err := sysutil.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("dotenv")
	}
	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, "ip-geo-seed")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		users:           sysutil.FirstNonEmpty(*users, os.Getenv("SEED_USERS")),
		plain:           *plain,
		allowProduction: sysutil.IsTruthy(os.Getenv("SEED_ALLOW_PRODUCTION")),
	}
	if err := run(ctx, cfg, opts); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

var errProductionSeed = errors.New("refusing to seed a production store; set SEED_ALLOW_PRODUCTION=true to override")

func run(ctx context.Context, cfg config.Config, opts options) error {
	if cfg.IsProduction() && !opts.allowProduction {
		return errProductionSeed
	}

	creds := services.DefaultSeedUsers()
	if opts.users != "" {
		parsed, err := services.ParseCredentials(opts.users)
		if err != nil {
			return fmt.Errorf("parse users: %w", err)
		}
		creds = parsed
	}
	hash := cfg.Auth.SeedHashPasswords && !opts.plain

	store, err := repo.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer store.Close()

	svc := services.NewAuthService(store, nil, auth.NewHasher(cfg.Auth.BcryptCost))
	if err := svc.Seed(ctx, creds, hash); err != nil {
		return err
	}

	emails := make([]string, 0, len(creds))
	for _, c := range creds {
		emails = append(emails, c.Email)
	}
	log.Info().Str("backend", cfg.Store.Backend).Strs("users", emails).Bool("hashed", hash).Msg("seed complete")
	return nil
}
