package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/taskmate/pkg/logger"
	"github.com/dmitrymomot/taskmate/pkg/requestid"
)

// NewErrorHandler builds the shared error handler every router installs: it
// logs the failure with request context and renders the standard JSON error
// envelope. Client errors (4xx) log at warn, everything else at error.
func NewErrorHandler(log *slog.Logger) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		status := statusFor(err)

		level := slog.LevelError
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request failed",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		resp := JSONError(err)
		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}

func statusFor(err error) int {
	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity
	}
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}
