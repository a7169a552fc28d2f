package server

import (
	"github.com/labstack/echo/v4"

	"github.com/mugummy/chzzkbot/internal/correlation"
)

// correlationMiddleware tags every request context with a correlation ID so
// log lines emitted while handling it can be tied together. An incoming
// X-Correlation-ID header is honored, otherwise a fresh ID is generated.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Correlation-ID")
			if id == "" {
				id = correlation.NewID()
			}

			ctx := correlation.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set("X-Correlation-ID", id)

			return next(c)
		}
	}
}
