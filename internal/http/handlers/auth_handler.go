// Session HTTP handlers: login, logout and the current-user probe.
//
// The session token travels in an HttpOnly cookie named "token"; the body
// only ever carries the public user fields.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/domain"
	"github.com/tbourn/ip-geo-backend/internal/http/middleware"
)

//
// DTOs
//

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email"    example:"user1@example.com"`
	Password string `json:"password" example:"password1"`
}

// UserResponse wraps the public view of a user.
type UserResponse struct {
	User domain.PublicUser `json:"user"`
}

//
// Handlers
//

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Verifies the email/password pair and sets the session cookie. Unknown emails and wrong passwords get the same 401.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.UserResponse
// @Header      200  {string}  Set-Cookie  "token=<jwt>; Path=/; HttpOnly; SameSite=Strict"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing email or password"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	sess, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}

	auth.SetSessionCookie(c.Writer, sess.Token, h.opts.SessionTTL, h.opts.SecureCookie)
	middleware.LoggerFrom(c).Info().Str("user_id", sess.User.ID).Msg("login")
	ok(c, http.StatusOK, UserResponse{User: sess.User})
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Clears the session cookie. Succeeds whether or not a session existed.
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.OKResponse
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	auth.ClearSessionCookie(c.Writer, h.opts.SecureCookie)
	okTrue(c)
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Description Returns the user behind the session cookie or Bearer token.
// @Tags        Auth
// @Produce     json
// @Security    CookieAuth
// @Success     200  {object}  handlers.UserResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not signed in"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msgUnauthorized)
		return
	}
	ok(c, http.StatusOK, UserResponse{User: domain.PublicUser{ID: id.UserID, Email: id.Email}})
}
