// Package utils holds small parsing helpers for query parameters.
package utils

import (
	"strconv"
	"strings"
)

// PageLimit parses a page-size query value. Absent, malformed, non-positive
// and oversized values all become max.
func PageLimit(raw string, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 || n > max {
		return max
	}
	return n
}
