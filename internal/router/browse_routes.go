package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
)

// RegisterBrowse registers the public, unauthenticated browse
// endpoints: the movie catalog, show details and the live seat map.
// Guests can pick seats before they register; only booking them
// requires an account.
//
// catalogCache applies to the movie listings only. The seat map and
// occupancy endpoints are always served live: their payload depends
// on the current time, so even a short response cache would hand out
// seats that are no longer free.
func RegisterBrowse(e *echo.Echo, shows *handler.ShowHandler, catalog *handler.CatalogHandler, catalogCache ...echo.MiddlewareFunc) {
	e.GET("/v1/movies", catalog.ListMovies, catalogCache...)
	e.GET("/v1/movies/:id/shows", shows.ListByMovie, catalogCache...)
	e.GET("/v1/shows/:id", shows.Get)
	e.GET("/v1/shows/:id/seats", shows.Seats)
	e.GET("/v1/shows/:id/occupancy", shows.Occupancy)
}
