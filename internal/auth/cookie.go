package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

// SetSessionCookie writes the session cookie: HttpOnly, SameSite=Strict,
// Path=/, Max-Age=ttl. Secure is set in production.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie with the same attributes it
// was set with.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromCookieHeader returns the value of cookie name from a raw Cookie
// header, or "" when absent. Malformed pairs are skipped.
func TokenFromCookieHeader(raw, name string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	r := http.Request{Header: http.Header{"Cookie": {raw}}}
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// TokenFromBearer returns the token of an "Authorization: Bearer <token>"
// header, or "" for any other scheme.
func TokenFromBearer(header string) string {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// TokensFromRequest returns the candidate session tokens in the order they
// should be tried: the session cookie, then a bearer token. Empty and
// duplicate values are dropped.
func TokensFromRequest(r *http.Request) []string {
	var out []string
	if tok := TokenFromCookieHeader(r.Header.Get("Cookie"), CookieName); tok != "" {
		out = append(out, tok)
	}
	if tok := TokenFromBearer(r.Header.Get("Authorization")); tok != "" && (len(out) == 0 || out[0] != tok) {
		out = append(out, tok)
	}
	return out
}
