// Package middleware contains the Gin middleware shared by every route of the
// geolocation API.
//
// This file owns the request correlation ID, panic recovery and access to the
// request-scoped zerolog logger. Install order in the router is:
//
//  1. RequestID()
//  2. RedactingLogger(...)
//  3. Recovery()
//
// so that a recovered panic is logged with the correlation ID and the access
// log still records the 500.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Gin context keys set by this package.
const (
	ctxKeyRequestID = "requestID"
	ctxKeyLogger    = "logger"
	ctxKeyUserID    = "userID"
	ctxKeyUserEmail = "userEmail"
)

const (
	requestIDHeader = "X-Request-ID"
	// maxRequestIDLen bounds a client-supplied correlation ID; longer values
	// are replaced with a fresh one.
	maxRequestIDLen = 128
)

// RequestID reuses an incoming X-Request-ID or generates a UUIDv4, stores it
// in the context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID set by RequestID, falling back to
// the response header when the context value is absent.
func RequestIDFrom(c *gin.Context) string {
	if rid := c.GetString(ctxKeyRequestID); rid != "" {
		return rid
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// Recovery turns a panic into the standard JSON 500 envelope and logs the
// stack trace. If the handler already wrote headers only the status is set.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by RedactingLogger.
// Outside such a request it falls back to the global logger, so callers never
// need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Str("request_id", RequestIDFrom(c)).Logger()
	return &l
}

// truncate caps s at max bytes, appending an ellipsis when cut. max <= 0
// disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
