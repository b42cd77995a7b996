// Package handlers defines the error codes carried in every error envelope
// and the mapping from service errors to HTTP statuses.
//
// Clients branch on the code, not the message:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "lookup_failed",
//	  "message": "geolocation lookup failed"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/geo"
	"github.com/tbourn/ip-geo-backend/internal/http/middleware"
	"github.com/tbourn/ip-geo-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	// ErrCodeLookupFailed is returned when the geolocation provider (or the
	// public-IP resolver) could not answer.
	ErrCodeLookupFailed = "lookup_failed"
)

// Messages shown to clients. Upstream and store details stay in the logs.
const (
	msgInvalidCredentials = "invalid credentials"
	msgUnauthorized       = "unauthorized"
	msgLookupFailed       = "geolocation lookup failed"
	msgInternal           = "internal server error"
)

// failErr translates err into the envelope. Unknown errors are treated as
// internal failures.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMissingCredentials),
		errors.Is(err, services.ErrMissingTarget),
		errors.Is(err, geo.ErrInvalidAddress):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, clientMessage(err))

	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msgInvalidCredentials)

	case errors.Is(err, auth.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msgUnauthorized)

	case errors.Is(err, geo.ErrUpstream):
		middleware.LoggerFrom(c).Error().Err(err).Msg("geolocation upstream failure")
		fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, msgLookupFailed)

	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("request failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
	}
}

// clientMessage returns the sentinel's own text for client errors so wrapping
// context never reaches the response.
func clientMessage(err error) string {
	for _, s := range []error{services.ErrMissingCredentials, services.ErrMissingTarget, geo.ErrInvalidAddress} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
