// Package geo resolves which address a lookup is about, queries an upstream
// geolocation provider for it and normalizes the answer into a
// domain.GeoRecord.
package geo

import (
	"net"
	"net/netip"
	"strings"
)

const mappedPrefix = "::ffff:"

// sanitize trims whitespace and strips an IPv4-mapped IPv6 prefix.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(mappedPrefix) && strings.EqualFold(s[:len(mappedPrefix)], mappedPrefix) {
		s = s[len(mappedPrefix):]
	}
	return s
}

// ResolveTarget picks the address to look up. Precedence: explicit query,
// first X-Forwarded-For entry, X-Real-IP, then the peer address with its port
// removed. It returns false when every candidate is empty.
func ResolveTarget(query, forwardedFor, realIP, remoteAddr string) (string, bool) {
	if q := sanitize(query); q != "" {
		return q, true
	}
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if xf := sanitize(first); xf != "" {
			return xf, true
		}
	}
	if xr := sanitize(realIP); xr != "" {
		return xr, true
	}
	peer := strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if p := sanitize(peer); p != "" {
		return p, true
	}
	return "", false
}

// ParseAddress validates address text, unmapping IPv4-in-IPv6 forms.
func ParseAddress(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(sanitize(s))
	if err != nil {
		return netip.Addr{}, ErrInvalidAddress
	}
	return a.Unmap(), nil
}

// IsPrivateOrLoopback reports whether addr is loopback, RFC 1918 private or an
// IPv6 unique local address (fc00::/7). Unparseable input is not private.
func IsPrivateOrLoopback(addr string) bool {
	a, err := ParseAddress(addr)
	if err != nil {
		return false
	}
	return a.IsLoopback() || a.IsPrivate()
}
