// Package sandbox exposes the per-user sandbox registry over HTTP.
package sandbox

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/taskmate/handler"
	"github.com/dmitrymomot/taskmate/svc/auth"
	"github.com/dmitrymomot/taskmate/svc/sandbox"
)

// RouterOptions configures the sandbox module.
type RouterOptions struct {
	Service *sandbox.Service
	Log     *slog.Logger
}

// Router mounts the sandbox endpoints.
func Router(opts RouterOptions) chi.Router {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	m := &module{opts: opts, errorHandler: handler.NewErrorHandler(opts.Log)}

	r := chi.NewRouter()
	r.Post("/", handler.Wrap(m.acquire,
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	return r
}

type module struct {
	opts         RouterOptions
	errorHandler handler.ErrorHandler[handler.Context]
}

type emptyRequest struct{}

// acquirePayload hides the sandbox password from list-style callers; the
// acquire response is the one place the password is returned.
type acquirePayload struct {
	*sandbox.Record
	SandboxPass string `json:"sandbox_pass"`
}

func (m *module) acquire(ctx handler.Context, _ emptyRequest) handler.Response {
	userID, err := auth.RequireAccount(ctx)
	if err != nil {
		return handler.Error(err)
	}

	rec, err := m.opts.Service.Acquire(ctx, userID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(acquirePayload{Record: rec, SandboxPass: rec.SandboxPass})
}
