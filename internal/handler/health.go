package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const readyTimeout = 2 * time.Second

// Pinger is anything that can report whether the store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is a liveness probe.  It returns a plain "ok" as long as the
// process serves HTTP.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready returns a readiness probe that pings the store.  It answers 503
// when the ping fails or does not finish within two seconds.  The cause
// is logged, never returned to the caller.
func Ready(p Pinger, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("readiness ping failed")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	}
}
