package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// RegisterBooking registers the booking lifecycle endpoints under
// /v1. All routes require a valid JWT; customers and admins may both
// book. Extra middleware (typically the Redis rate limiter) applies
// to the whole group.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	}, extra...)
	g := e.Group("/v1", mw...)

	g.POST("/bookings", h.Create)
	g.POST("/bookings/:id/confirm", h.Confirm)
	g.POST("/bookings/:id/pay", h.Pay)
	g.POST("/bookings/:id/cancel", h.Cancel)
	g.GET("/bookings/:id", h.Get)
	g.GET("/me/bookings", h.ListMine)
	g.GET("/me/stats", h.MyStats)
}
