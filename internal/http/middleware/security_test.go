package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_ExposeRequestID(t *testing.T) {
	cases := []struct {
		name, existing, want string
	}{
		{"fresh", "", "X-Request-ID"},
		{"append", "Foo", "Foo, X-Request-ID"},
		{"already present", "x-request-id, Foo", "x-request-id, Foo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				c.Header(requestIDHeader, "rid")
				if tc.existing != "" {
					c.Header("Access-Control-Expose-Headers", tc.existing)
				}
				c.Next()
			}
			h := serveSecurity(t, SecurityOptions{}, pre, httptest.NewRequest(http.MethodGet, "/ok", nil))
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_OptionalHeaders(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, NoStore: true, EnablePolicy: true}

	tlsReq := httptest.NewRequest(http.MethodGet, "/ok", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	h := serveSecurity(t, opt, nil, tlsReq)
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" || h.Get("Permissions-Policy") == "" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers missing: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}

	// default max-age through a proxy
	proxied := httptest.NewRequest(http.MethodGet, "/ok", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	h = serveSecurity(t, SecurityOptions{EnableHSTS: true}, nil, proxied)
	if got := h.Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default HSTS = %q", got)
	}

	// never over plain HTTP
	h = serveSecurity(t, opt, nil, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over HTTP")
	}
}
