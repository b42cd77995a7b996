// Package httpapi wires the Gin engine: cross-cutting middleware, the public
// API group and the operational endpoints (/health, /healthz, /metrics and,
// when enabled, /swagger).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/ip-geo-backend/docs"
	"github.com/tbourn/ip-geo-backend/internal/config"
	"github.com/tbourn/ip-geo-backend/internal/http/handlers"
	"github.com/tbourn/ip-geo-backend/internal/http/middleware"
)

const (
	maxBodyBytes = 64 << 10

	// Sign-in attempts per client IP.
	loginRPS   = 0.2
	loginBurst = 5
)

// Deps are the services the routes are bound to.
type Deps struct {
	Auth     handlers.Authenticator
	History  handlers.HistoryService
	Store    handlers.Pinger
	Sessions middleware.TokenVerifier
}

// RegisterRoutes installs middleware and routes on r.
//
// Global middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (access log, request-scoped logger)
//  4. Recovery
//  5. body size limit
//  6. Metrics
//  7. CORS
//  8. security headers
//
// The API group then adds Authenticate, the per-caller rate limiter, gzip
// and no-store caching; routes that need a user add RequireAuth.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(deps.Auth, deps.History, deps.Store, handlers.Options{
		SessionTTL:   cfg.Auth.TokenTTL,
		SecureCookie: cfg.IsProduction(),
		Service:      cfg.OTEL.ServiceName,
		Version:      cfg.Version,
		Env:          cfg.Env,
	})

	// Operational endpoints stay outside the rate limiter.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	loginLimiter := middleware.NewRateLimiter(loginRPS, loginBurst, middleware.KeyByIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Authenticate(deps.Sessions),
		limiter.Handler(),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		api.GET("/healthz", h.Healthz)

		api.POST("/auth/login", loginLimiter.Handler(), h.Login)
		api.POST("/auth/logout", h.Logout)
		api.GET("/auth/me", middleware.RequireAuth(), h.Me)

		api.GET("/geo/lookup", h.Lookup)

		authed := api.Group("", middleware.RequireAuth())
		authed.GET("/history", h.ListHistory)
		authed.DELETE("/history", h.DeleteHistory)
	}
}

// corsMiddleware allows any origin without credentials when no allowlist is
// configured. With an allowlist, credentials are allowed so the session
// cookie travels on cross-origin requests from those origins.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// limitBody caps request bodies at maxBytes; reads past the cap fail, which
// surfaces as a 400 from JSON binding.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
