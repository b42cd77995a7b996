package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/config"
	"github.com/tbourn/ip-geo-backend/internal/geo"
	"github.com/tbourn/ip-geo-backend/internal/http/handlers"
	"github.com/tbourn/ip-geo-backend/internal/repo"
	"github.com/tbourn/ip-geo-backend/internal/services"
)

const publicAddr = "203.0.113.7"

// fakeIPAPI answers like ip-api.com for any address in the path and counts
// calls.
func fakeIPAPI(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ip := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","query":%q,"country":"United States","regionName":"California","city":"Mountain View","isp":"Example ISP","lat":37.4,"lon":-122.1,"timezone":"America/Los_Angeles"}`, ip)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeIpify(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"ip":%q}`, publicAddr)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api",
		Env:         "test",
		Version:     "test-build",
		RateRPS:     1000,
		RateBurst:   1000,
		Auth:        config.AuthConfig{TokenTTL: time.Hour},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

// newStack wires the real services over a file store and fake upstreams.
func newStack(t *testing.T, cfg config.Config) (*gin.Engine, *atomic.Int64) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repo.OpenFileStore(filepath.Join(t.TempDir(), "dev-data.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	sessions := auth.NewManager("router-test-secret", cfg.Auth.TokenTTL)
	authSvc := services.NewAuthService(store, sessions, auth.NewHasher(4))
	if err := authSvc.Seed(context.Background(), services.DefaultSeedUsers(), true); err != nil {
		t.Fatalf("seed: %v", err)
	}

	calls := new(atomic.Int64)
	client := geo.NewHTTPClient(2 * time.Second)
	geoSvc := geo.NewService(geo.NewIPAPI(fakeIPAPI(t, calls).URL, client), geo.NewIpify(fakeIpify(t).URL, client))

	r := gin.New()
	RegisterRoutes(r, Deps{
		Auth:     authSvc,
		History:  services.NewHistoryService(store, geoSvc),
		Store:    store,
		Sessions: sessions,
	}, cfg)
	return r, calls
}

func do(r *gin.Engine, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, w.Body.String())
	}
	return v
}

func tokenCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.CookieName)
	return nil
}

func TestFlow_LoginLookupHistoryDelete(t *testing.T) {
	r, calls := newStack(t, testConfig())

	if w := do(r, http.MethodGet, "/api/history", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("history without session: %d", w.Code)
	}

	w := do(r, http.MethodPost, "/api/auth/login", `{"email":"user1@example.com","password":"wrong"}`, nil)
	if er := decode[handlers.ErrorResponse](t, w); w.Code != http.StatusUnauthorized || er.Message != "invalid credentials" {
		t.Fatalf("wrong password: %d %+v", w.Code, er)
	}
	w = do(r, http.MethodPost, "/api/auth/login", `{"email":"ghost@example.com","password":"password1"}`, nil)
	if er := decode[handlers.ErrorResponse](t, w); w.Code != http.StatusUnauthorized || er.Message != "invalid credentials" {
		t.Fatalf("unknown email: %d %+v", w.Code, er)
	}

	w = do(r, http.MethodPost, "/api/auth/login", `{"email":"User1@Example.com","password":"password1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	login := decode[handlers.UserResponse](t, w)
	if login.User.Email != "user1@example.com" || login.User.ID == "" {
		t.Fatalf("unexpected user: %+v", login.User)
	}
	ck := tokenCookie(t, w)
	if !ck.HttpOnly || ck.SameSite != http.SameSiteStrictMode || ck.Secure {
		t.Fatalf("unexpected cookie attributes: %+v", ck)
	}
	// cookie lifetime and token lifetime both come from TOKEN_TTL
	ttl := testConfig().Auth.TokenTTL
	if ck.MaxAge != int(ttl/time.Second) {
		t.Fatalf("cookie MaxAge = %d, want %v", ck.MaxAge, ttl)
	}
	var claims auth.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(ck.Value, &claims); err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != ttl {
		t.Fatalf("token lifetime = %v, want %v", got, ttl)
	}

	if me := decode[handlers.UserResponse](t, do(r, http.MethodGet, "/api/auth/me", "", ck)); me.User != login.User {
		t.Fatalf("me = %+v, want %+v", me.User, login.User)
	}

	hist := decode[handlers.HistoryResponse](t, do(r, http.MethodGet, "/api/history", "", ck))
	if hist.Items == nil || len(hist.Items) != 0 {
		t.Fatalf("expected empty non-null items, got %+v", hist.Items)
	}

	w = do(r, http.MethodGet, "/api/geo/lookup?ip=8.8.8.8", "", ck)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup: %d %s", w.Code, w.Body.String())
	}
	res := decode[handlers.LookupResponse](t, w)
	if res.IP != "8.8.8.8" || res.Data.Country != "United States" || res.Data.ISPOrOrg != "Example ISP" {
		t.Fatalf("unexpected lookup: %+v", res)
	}

	// anonymous lookups are answered but not recorded
	if w := do(r, http.MethodGet, "/api/geo/lookup?ip=1.1.1.1", "", nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous lookup: %d", w.Code)
	}

	// loopback is replaced by the public address before the provider call
	w = do(r, http.MethodGet, "/api/geo/lookup?ip=127.0.0.1", "", ck)
	if res := decode[handlers.LookupResponse](t, w); res.IP != publicAddr || res.Data.Address != publicAddr {
		t.Fatalf("loopback lookup: %+v", res)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("provider calls = %d, want 3", n)
	}

	hist = decode[handlers.HistoryResponse](t, do(r, http.MethodGet, "/api/history", "", ck))
	if len(hist.Items) != 2 || hist.Items[0].Address != publicAddr || hist.Items[1].Address != "8.8.8.8" {
		t.Fatalf("unexpected history: %+v", hist.Items)
	}
	if hist.Items[1].Payload != res.Data {
		t.Fatalf("recorded payload differs: %+v", hist.Items[1].Payload)
	}

	if lim := decode[handlers.HistoryResponse](t, do(r, http.MethodGet, "/api/history?limit=1", "", ck)); len(lim.Items) != 1 {
		t.Fatalf("limit=1 returned %d items", len(lim.Items))
	}

	// another user cannot see or delete user1's entries
	w = do(r, http.MethodPost, "/api/auth/login", `{"email":"user2@example.com","password":"password2"}`, nil)
	other := tokenCookie(t, w)
	if h := decode[handlers.HistoryResponse](t, do(r, http.MethodGet, "/api/history", "", other)); len(h.Items) != 0 {
		t.Fatalf("user2 sees %d foreign entries", len(h.Items))
	}
	body := fmt.Sprintf(`{"ids":[%q]}`, hist.Items[0].ID)
	if w := do(r, http.MethodDelete, "/api/history", body, other); w.Code != http.StatusOK {
		t.Fatalf("foreign delete should be a silent no-op: %d", w.Code)
	}

	if w := do(r, http.MethodDelete, "/api/history", body, ck); w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	hist = decode[handlers.HistoryResponse](t, do(r, http.MethodGet, "/api/history", "", ck))
	if len(hist.Items) != 1 || hist.Items[0].Address != "8.8.8.8" {
		t.Fatalf("after delete: %+v", hist.Items)
	}

	w = do(r, http.MethodPost, "/api/auth/logout", "", ck)
	if cleared := tokenCookie(t, w); w.Code != http.StatusOK || cleared.MaxAge >= 0 {
		t.Fatalf("logout: %d %+v", w.Code, cleared)
	}
}

func TestLookup_UpstreamFailureIsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded for key abc", http.StatusTooManyRequests)
	}))
	defer down.Close()

	client := geo.NewHTTPClient(time.Second)
	hist := services.NewHistoryService(nil, geo.NewService(geo.NewIPAPI(down.URL, client), geo.NewIpify(down.URL, client)))
	r := gin.New()
	RegisterRoutes(r, Deps{Auth: &services.AuthService{}, History: hist, Sessions: auth.NewManager("s", time.Hour)}, testConfig())

	w := do(r, http.MethodGet, "/api/geo/lookup?ip=8.8.8.8", "", nil)
	er := decode[handlers.ErrorResponse](t, w)
	if w.Code != http.StatusInternalServerError || er.Code != handlers.ErrCodeLookupFailed || strings.Contains(w.Body.String(), "quota") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/geo/lookup?ip=not-an-ip", "", nil)
	if er := decode[handlers.ErrorResponse](t, w); w.Code != http.StatusBadRequest || er.Code != handlers.ErrCodeBadRequest {
		t.Fatalf("invalid ip: %d %+v", w.Code, er)
	}
}

func TestRegisterRoutes_OperationalEndpointsAndFallbacks(t *testing.T) {
	r, _ := newStack(t, testConfig())

	if w := do(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("/health: %d %s", w.Code, w.Body.String())
	}

	hz := decode[handlers.HealthResponse](t, do(r, http.MethodGet, "/api/healthz", "", nil))
	if !hz.OK || hz.Service != "test-svc" || hz.Version != "test-build" || hz.Env != "test" || hz.Store != "ok" {
		t.Fatalf("/api/healthz: %+v", hz)
	}

	if w := do(r, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("/metrics: %d", w.Code)
	}

	w := do(r, http.MethodGet, "/nope", "", nil)
	if er := decode[handlers.ErrorResponse](t, w); w.Code != http.StatusNotFound || er.Code != handlers.ErrCodeNotFound || er.RequestID == "" {
		t.Fatalf("404: %d %+v", w.Code, er)
	}
	w = do(r, http.MethodPut, "/api/history", "", nil)
	if er := decode[handlers.ErrorResponse](t, w); w.Code != http.StatusMethodNotAllowed || er.Code != handlers.ErrCodeMethodNotAllowed {
		t.Fatalf("405: %d %+v", w.Code, er)
	}

	// API responses are not cacheable; security headers everywhere
	w = do(r, http.MethodGet, "/api/healthz", "", nil)
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("headers: %#v", w.Header())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}

	if w := do(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default: %d", w.Code)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newStack(t, cfg)

	w := do(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/geo/lookup") {
		t.Fatalf("doc.json: %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	r, _ := newStack(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip, got headers %#v", w.Header())
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	t.Run("allow all without credentials", func(t *testing.T) {
		r, _ := newStack(t, testConfig())
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://anything.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Header().Get("Access-Control-Allow-Origin") != "*" || w.Header().Get("Access-Control-Allow-Credentials") != "" {
			t.Fatalf("headers: %#v", w.Header())
		}
	})

	t.Run("allowlist with credentials", func(t *testing.T) {
		cfg := testConfig()
		cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
		r, _ := newStack(t, cfg)

		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("preflight: %d", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" || w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Fatalf("headers: %#v", w.Header())
		}

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Fatalf("foreign origin must not be allowed: %#v", w.Header())
		}
	})
}

func TestRegisterRoutes_LoginRateLimit(t *testing.T) {
	r, _ := newStack(t, testConfig())

	var last *httptest.ResponseRecorder
	for i := 0; i <= loginBurst; i++ {
		last = do(r, http.MethodPost, "/api/auth/login", `{"email":"user1@example.com","password":"nope"}`, nil)
	}
	if last.Code != http.StatusTooManyRequests || last.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 after %d attempts, got %d", loginBurst, last.Code)
	}
	// other routes use their own bucket
	if w := do(r, http.MethodGet, "/api/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz limited by login bucket: %d", w.Code)
	}
}

func Test_limitBody(t *testing.T) {
	r, _ := newStack(t, testConfig())
	huge := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `","password":"x"}`
	w := do(r, http.MethodPost, "/api/auth/login", huge, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized body: %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for prefix, path := range map[string]string{"": "/ping", "/": "/ping", "/api/v2": "/api/v2/ping"} {
		r := gin.New()
		groupWithPrefix(r, prefix).GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("prefix %q: GET %s -> %d", prefix, path, w.Code)
		}
	}
}
