package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// RegisterAdmin registers catalog management and show scheduling
// under /v1. Every route requires a JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, shows *handler.ShowHandler, catalog *handler.CatalogHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.POST("/movies", catalog.CreateMovie)
	g.POST("/screens", catalog.CreateScreen)
	g.GET("/screens", catalog.ListScreens)
	g.GET("/screens/:id/shows", shows.ListByScreen)
	g.POST("/shows", shows.Create)
	g.POST("/shows/:id/cancel", shows.Cancel)
	g.GET("/shows/:id/revenue", shows.Revenue)
}
