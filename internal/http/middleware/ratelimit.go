// Package middleware contains the Gin middleware shared by every route of the
// geolocation API.
//
// RateLimiter is a process-local token bucket per caller, built on
// golang.org/x/time/rate. Each lookup may fan out to a paid geolocation
// provider, so the API group is limited per user (or per client IP for
// anonymous callers), and the login route gets a stricter per-IP limiter.
// Idle buckets are evicted opportunistically.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its bucket key.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys authenticated callers by user id and everyone else by
// client IP. Prefixes keep the two namespaces apart.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetString(ctxKeyUserID); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys every caller by client IP.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

const (
	bucketIdleTTL = 10 * time.Minute
	sweepEvery    = 5000
)

// NewRateLimiter returns a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		ttl:     bucketIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// limiterFor returns the bucket for key, creating it when absent. Every
// sweepEvery lookups idle buckets are dropped; the sweep runs before the
// requested bucket is touched so a stale one is replaced, not refreshed.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// Handler enforces the limit. Rejected requests get 429 with the standard
// envelope and a Retry-After header in whole seconds.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := rl.limiterFor(rl.keyFn(c))

		now := rl.now()
		res := lim.ReserveN(now, 1)
		if res.OK() && res.DelayFrom(now) == 0 {
			c.Next()
			return
		}

		retry := 1
		if res.OK() {
			retry = max(1, int(math.Ceil(res.DelayFrom(now).Seconds())))
			res.CancelAt(now)
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
