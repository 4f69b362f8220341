package middleware // reusable HTTP middleware for the booking API

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects its claims into the request context.  The secret
// must match the one used when issuing tokens.  Protected handlers
// read the authenticated identity via c.Get("user_id"), c.Get("role")
// and c.Get("email").
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header is "Bearer <jwt>"; anything else is 401.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "error_code": "UNAUTHORIZED", "message": "missing bearer token",
                })
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Parse with the expected HMAC method; any other signing
            // algorithm in the header is rejected outright.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "error_code": "UNAUTHORIZED", "message": "invalid token",
                })
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "error_code": "UNAUTHORIZED", "message": "invalid claims",
                })
            }

            // Expose the subject (user ID), role and email to handlers
            // and downstream middleware.  Type assertions are left to
            // the consumers; JSON numbers arrive as float64.
            c.Set("user_id", claims["sub"])
            c.Set("role", claims["role"])
            c.Set("email", claims["email"])
            return next(c)
        }
    }
}
