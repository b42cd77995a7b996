// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, session signing, store backend selection,
// upstream geolocation providers, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// DevJWTSecret is the well-known signing secret used when JWT_SECRET is unset
// outside production. It must never sign production sessions.
const DevJWTSecret = "dev-secret"

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "ip-geo-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig defines session token and password settings.
type AuthConfig struct {
	JWTSecret         string        // JWT_SECRET
	TokenTTL          time.Duration // TOKEN_TTL (also the cookie max-age)
	BcryptCost        int           // BCRYPT_COST
	UsingDevSecret    bool          // true when JWT_SECRET was not provided
	SeedOnStart       bool          // SEED_ON_START
	SeedHashPasswords bool          // SEED_HASH_PASSWORDS
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend  string // file|redis|sqlite
	DataFile string // DATA_FILE for the file backend
	RedisURL string // REDIS_URL (redis:// or rediss://)
	DBPath   string // DB_PATH for the sqlite backend
}

// GeoConfig configures the upstream geolocation providers.
type GeoConfig struct {
	APIKey      string        // IP_GEOLOCATION_API_KEY; selects the keyed provider
	IPInfoURL   string        // IPINFO_BASE_URL
	IPAPIURL    string        // IPAPI_BASE_URL
	PublicIPURL string        // PUBLIC_IP_URL
	Timeout     time.Duration // GEO_TIMEOUT per upstream call
	CityDB      string        // GEOIP_CITY_DB; selects the offline provider
	ASNDB       string        // GEOIP_ASN_DB (optional, offline provider only)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	TrustedProxies    []string      // TRUSTED_PROXIES (CIDRs or IPs)

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	Env     string // APP_ENV: development|production
	Version string // APP_VERSION reported by /healthz

	Auth  AuthConfig
	Store StoreConfig
	Geo   GeoConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c Config) IsProduction() bool { return c.Env == "production" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "4000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		TrustedProxies:    splitCSV(getenv("TRUSTED_PROXIES", "127.0.0.1,::1")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// App
		Env:     strings.ToLower(getenv("APP_ENV", "development")),
		Version: getenv("APP_VERSION", "0.1.0"),

		Auth: AuthConfig{
			JWTSecret:         getenv("JWT_SECRET", ""),
			TokenTTL:          getdur("TOKEN_TTL", time.Hour),
			BcryptCost:        getint("BCRYPT_COST", 10),
			SeedOnStart:       getbool("SEED_ON_START", true),
			SeedHashPasswords: getbool("SEED_HASH_PASSWORDS", true),
		},

		Store: StoreConfig{
			Backend:  strings.ToLower(getenv("STORE_BACKEND", BackendFile)),
			DataFile: getenv("DATA_FILE", "data/dev-data.json"),
			RedisURL: getenv("REDIS_URL", ""),
			DBPath:   getenv("DB_PATH", "data/app.db"),
		},

		Geo: GeoConfig{
			APIKey:      getenv("IP_GEOLOCATION_API_KEY", ""),
			IPInfoURL:   getenv("IPINFO_BASE_URL", "https://ipinfo.io"),
			IPAPIURL:    getenv("IPAPI_BASE_URL", "http://ip-api.com/json"),
			PublicIPURL: getenv("PUBLIC_IP_URL", "https://api.ipify.org?format=json"),
			Timeout:     getdur("GEO_TIMEOUT", 8*time.Second),
			CityDB:      getenv("GEOIP_CITY_DB", ""),
			ASNDB:       getenv("GEOIP_ASN_DB", ""),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "ip-geo-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Env == "prod" {
		cfg.Env = "production"
	}
	if cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = DevJWTSecret
		cfg.Auth.UsingDevSecret = true
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.IsProduction() && cfg.Auth.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET must be set when APP_ENV=production")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("TOKEN_TTL must be > 0")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return cfg, errors.New("BCRYPT_COST must be between 4 and 31")
	}
	switch cfg.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(cfg.Store.DataFile) == "" {
			return cfg, errors.New("DATA_FILE must not be empty")
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Store.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL must be set when STORE_BACKEND=redis")
		}
	case BackendSQLite:
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: file, redis, sqlite")
	}
	if cfg.Geo.Timeout <= 0 {
		return cfg, errors.New("GEO_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
