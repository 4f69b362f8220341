// Package handler wires HTTP requests to the booking engine, the
// payment coordinator and the repositories. Handlers parse and
// validate input, delegate to the domain layer and translate errors
// into the shared envelope; they never touch seat or booking state
// directly.
package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated user's ID from the echo
// context. The JWT middleware stores it under "user_id"; the type
// switch covers the representations different token paths produce
// (JSON numbers decode as float64).
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// currentRole returns the role claim set by the JWT middleware, or
// the empty string when absent.
func currentRole(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}

// pathID parses a numeric path parameter. Zero is rejected because
// no table hands out ID 0.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// indexToRowLabel converts a zero-based row index to a spreadsheet
// style label: 0 -> A, 25 -> Z, 26 -> AA.
func indexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var res []rune
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// rowLabelToIndex is the inverse of indexToRowLabel. It reports
// false for labels containing anything but ASCII letters.
func rowLabelToIndex(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}

// normalizeRowLabel uppercases a row label and drops everything that
// is not an ASCII letter, so "a ", "A" and "a" all address row A.
func normalizeRowLabel(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 32)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}
