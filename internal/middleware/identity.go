package middleware

// identity.go holds the shared helper that turns whatever JWTAuth put
// into the context back into a stable user key.  The JWT library
// decodes numeric claims as float64, so every plausible shape is
// handled.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user's ID as a string for
// rate-limit keys and log fields.  Unauthenticated requests map to
// "anon".
func currentUserID(c echo.Context) string {
    switch v := c.Get("user_id").(type) {
    case string:
        if v != "" {
            return v
        }
    case float64:
        return strconv.FormatUint(uint64(v), 10)
    case uint64:
        return strconv.FormatUint(v, 10)
    case int64:
        return strconv.FormatInt(v, 10)
    }
    return "anon"
}
