// Package router registers the HTTP routes and binds the middleware
// chain of each route group.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated service endpoints:
// liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Live)
	e.GET("/readyz", health.Ready)
}

// RegisterAuth registers registration, login and session management
// under /v1/auth, plus the authenticated profile endpoint /v1/me.
// Logout deliberately carries no JWT middleware so a client whose
// access token already expired can still end its session with the
// refresh token in the body.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}
