package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/alumicraft/mailroom"
)

// errorStatusCode maps domain error codes to HTTP status codes.
func errorStatusCode(code string) int {
	switch code {
	case mailroom.ENOTFOUND:
		return http.StatusNotFound
	case mailroom.EINVALID, mailroom.ECONFIG:
		return http.StatusBadRequest
	case mailroom.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case mailroom.EFORBIDDEN:
		return http.StatusForbidden
	case mailroom.ECONFLICT:
		return http.StatusConflict
	case mailroom.EPRECONDITION:
		return http.StatusPreconditionFailed
	case mailroom.ENORECIPIENT:
		return http.StatusUnprocessableEntity
	case mailroom.EPROVIDER, mailroom.EFALLBACK:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse represents the JSON error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// HandleError converts domain errors to appropriate HTTP responses.
// It logs internal errors and returns user-safe messages.
func HandleError(c echo.Context, logger *slog.Logger, err error) error {
	code := mailroom.ErrorCode(err)
	message := mailroom.ErrorMessage(err)
	status := errorStatusCode(code)

	// Log internal errors with full details
	if code == mailroom.EINTERNAL {
		logger.Error("internal error",
			slog.String("error", err.Error()),
			slog.String("path", c.Path()),
			slog.String("method", c.Request().Method),
		)
		// Don't expose internal error details to clients
		message = "An internal error occurred."
	}

	return c.JSON(status, ErrorResponse{
		Error:   code,
		Message: message,
		Reason:  mailroom.ErrorReason(err),
	})
}
