package errors

import (
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON error body sent to API clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// Middleware converts structured errors returned by handlers into JSON
// responses with the mapped status code. Echo's own HTTPErrors pass through
// untouched.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if _, ok := err.(*echo.HTTPError); ok {
				return err
			}

			structured := AsStructured(err)
			logError(c, structured)
			if writeErr := c.JSON(structured.HTTPStatus(), ErrorResponse{
				Error:   structured.Message,
				Type:    structured.Type,
				Context: structured.Context,
			}); writeErr != nil {
				return fmt.Errorf("failed to write error response: %w", writeErr)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case TypeValidation, TypeNotFound:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Request failed", attrs...)
	}
}
