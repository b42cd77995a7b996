// Package middleware contains the Gin middleware shared by every route of the
// geolocation API.
//
// This file resolves the caller's session. Authenticate runs on the whole API
// group and is permissive: a missing or invalid token leaves the request
// anonymous. RequireAuth is stacked on routes that need a user and rejects
// anonymous requests with 401.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/ip-geo-backend/internal/auth"
)

// TokenVerifier validates a session token. *auth.Manager implements it.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Authenticate reads the session token from the "token" cookie or a Bearer
// header and, when valid, stores the identity in the context. A stale cookie
// does not shadow a valid bearer token.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, tok := range auth.TokensFromRequest(c.Request) {
			id, err := v.Verify(tok)
			if err != nil {
				LoggerFrom(c).Debug().Err(err).Msg("ignoring invalid session token")
				continue
			}
			c.Set(ctxKeyUserID, id.UserID)
			c.Set(ctxKeyUserEmail, id.Email)
			break
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 unless Authenticate resolved an identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller's identity, or nil for anonymous requests.
func IdentityFrom(c *gin.Context) *auth.Identity {
	uid := c.GetString(ctxKeyUserID)
	if uid == "" {
		return nil
	}
	return &auth.Identity{UserID: uid, Email: c.GetString(ctxKeyUserEmail)}
}
