// Package middleware contains the Gin middleware shared by every route of the
// geolocation API.
//
// RedactingLogger is the access log. Lookup targets, forwarding headers and
// credentials are all personal data here, so the log line carries only
// scrubbed values:
//
//   - Authorization, Cookie and Set-Cookie are masked entirely
//   - IPv4/IPv6 literals and email addresses are replaced in query strings
//     and header values
//   - bodies are never logged
//
// The middleware also attaches a request-scoped zerolog.Logger (request_id,
// method, route) that handlers retrieve with LoggerFrom.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxQueryLogLength caps the logged (already redacted) query string.
const maxQueryLogLength = 1024

// RedactOptions adds header names to mask on top of the built-in set.
// Matching is case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	ipv4RE  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	// Loose: any run of hex groups joined by at least two colons.
	ipv6RE = regexp.MustCompile(`(?i)(?:[0-9a-f]{0,4}:){2,7}[0-9a-f]{0,4}`)
)

// redact scrubs addresses and emails from s. Email runs first so the domain
// part of an address is not mistaken for anything else.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = ipv4RE.ReplaceAllString(s, "[REDACTED:ip]")
	s = ipv6RE.ReplaceAllString(s, "[REDACTED:ip]")
	return s
}

// RedactingLogger logs one structured line per request at info, warn (4xx)
// or error (5xx) level.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		rl := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(ctxKeyLogger, &rl)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := mask[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}
		query := truncate(redact(unescapeQuery(c.Request.URL.RawQuery)), maxQueryLogLength)

		c.Next()

		status := c.Writer.Status()
		ev := rl.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = rl.Error()
		case status >= 400:
			ev = rl.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.
			Str("user_id", c.GetString(ctxKeyUserID)).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// unescapeQuery decodes percent-escapes so encoded colons in IPv6 targets are
// seen by the redaction patterns.
func unescapeQuery(raw string) string {
	if s, err := url.QueryUnescape(raw); err == nil {
		return s
	}
	return raw
}
