package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/history", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.DELETE("/api/history", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/history", "200"))
	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/api/history", "204"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/history", nil),
		httptest.NewRequest(http.MethodDelete, "/api/history", nil),
		httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil),
		httptest.NewRequest(http.MethodGet, "/.env", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/history", "200")); got != baseOK+1 {
		t.Fatalf("GET counter = %v, want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/api/history", "204")); got != baseDel+1 {
		t.Fatalf("DELETE counter = %v, want %v", got, baseDel+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != baseMiss+2 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseMiss+2)
	}
	if inflight := testutil.ToFloat64(httpInflight); inflight != 0 {
		t.Fatalf("inflight = %v, want 0", inflight)
	}
}
