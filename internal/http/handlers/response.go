// Package handlers implements the HTTP endpoints of the geolocation API.
//
// This file holds the response helpers. Every error leaves the API as an
// ErrorResponse with a stable code; success bodies are plain JSON objects.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/ip-geo-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID, for correlating with server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code
	Code string `json:"code" example:"bad_request"`
	// Human-readable message, safe to display
	Message string `json:"message" example:"invalid ip address"`
}

// OKResponse is the body of operations with nothing else to report.
type OKResponse struct {
	OK bool `json:"ok" example:"true"`
}

// fail aborts with the envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for callers outside this package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func okTrue(c *gin.Context) {
	ok(c, http.StatusOK, OKResponse{OK: true})
}
