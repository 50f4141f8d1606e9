// Package router registers the HTTP routes of the API on an echo
// instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/movies-api/internal/handler"
)

// RegisterRoutes registers the probes.  They stay outside the /movies
// group so rate limiting never applies to them.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, log zerolog.Logger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db, log))
}

// RegisterMovies registers the movie routes under /movies.  Static
// segments (all, year, paged) take precedence over :id in echo's router.
func RegisterMovies(e *echo.Echo, h *handler.MovieHandler, mws ...echo.MiddlewareFunc) {
	g := e.Group("/movies", mws...)

	g.POST("", h.Create)
	g.GET("", h.ListAll)
	g.GET("/paged", h.ListPaged)
	g.GET("/year", h.ListByYears)
	g.GET("/year/:year", h.ListByYear)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/like", h.Like)
	g.DELETE("/all", h.DeleteAll)
	g.DELETE("/:id", h.Delete)
}
