// Command server runs the IP geolocation HTTP API.
//
//	@title						IP Geolocation API
//	@version					1.0
//	@description				Sign-in, IP geolocation lookups and per-user lookup history.
//	@BasePath					/api
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						token
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/config"
	"github.com/tbourn/ip-geo-backend/internal/geo"
	httpapi "github.com/tbourn/ip-geo-backend/internal/http"
	"github.com/tbourn/ip-geo-backend/internal/observability"
	"github.com/tbourn/ip-geo-backend/internal/repo"
	"github.com/tbourn/ip-geo-backend/internal/services"
	"github.com/tbourn/ip-geo-backend/internal/sysutil"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := sysutil.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("dotenv")
	}
	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped cleanly")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, cfg.Version, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	store, err := repo.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info().Str("backend", cfg.Store.Backend).Msg("store ready")

	if cfg.Auth.UsingDevSecret {
		log.Warn().Msg("JWT_SECRET is not set; sessions are signed with the development secret")
	}
	sessions := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authSvc := services.NewAuthService(store, sessions, auth.NewHasher(cfg.Auth.BcryptCost))
	if cfg.Auth.SeedOnStart {
		if err := authSvc.Seed(ctx, services.DefaultSeedUsers(), cfg.Auth.SeedHashPasswords); err != nil {
			return err
		}
	}

	geoSvc, err := geo.NewServiceFromConfig(cfg.Geo)
	if err != nil {
		return err
	}
	defer geoSvc.Close()
	log.Info().Str("provider", geoSvc.ProviderName()).Msg("geolocation provider selected")

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return err
	}
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Auth:     authSvc,
		History:  services.NewHistoryService(store, geoSvc),
		Store:    store,
		Sessions: sessions,
	}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Str("version", cfg.Version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
