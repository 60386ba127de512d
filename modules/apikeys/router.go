// Package apikeys exposes API-key management over HTTP. Every endpoint
// requires an authenticated account and carries its own rate limit keyed
// by that account.
package apikeys

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/taskmate/handler"
	"github.com/dmitrymomot/taskmate/pkg/binder"
	"github.com/dmitrymomot/taskmate/pkg/ratelimit"
	"github.com/dmitrymomot/taskmate/svc/apikeys"
	"github.com/dmitrymomot/taskmate/svc/auth"
)

// Per-endpoint limits, requests per minute.
const (
	createLimit     = 3
	listLimit       = 10
	regenerateLimit = 3
	revokeLimit     = 5
)

// RouterOptions configures the apikeys module.
type RouterOptions struct {
	Service *apikeys.Service
	Log     *slog.Logger

	// LimitStore backs the per-endpoint rate limiters. Nil disables
	// limiting, which only makes sense in tests.
	LimitStore ratelimit.Store
}

// Router mounts the key-management endpoints.
func Router(opts RouterOptions) chi.Router {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	m := &module{opts: opts, errorHandler: handler.NewErrorHandler(opts.Log)}

	r := chi.NewRouter()

	r.With(m.limit("create", createLimit)).Post("/", handler.Wrap(m.create,
		handler.WithBinders[handler.Context](binder.JSON(), binder.Form()),
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	r.With(m.limit("list", listLimit)).Get("/", handler.Wrap(m.list,
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	r.With(m.limit("regenerate", regenerateLimit)).Post("/{keyID}/regenerate", handler.Wrap(m.regenerate,
		handler.WithBinders[handler.Context](binder.Path(chiURLParam)),
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	r.With(m.limit("revoke", revokeLimit)).Delete("/{keyID}", handler.Wrap(m.revoke,
		handler.WithBinders[handler.Context](binder.Path(chiURLParam)),
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))

	return r
}

func chiURLParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

type module struct {
	opts         RouterOptions
	errorHandler handler.ErrorHandler[handler.Context]
}

// limit builds a fixed-window middleware for one endpoint, keyed by the
// authenticated account. The endpoint tag keeps counters separate even
// though they share one store.
func (m *module) limit(tag string, perMinute int) func(http.Handler) http.Handler {
	if m.opts.LimitStore == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter, err := ratelimit.NewFixedWindow(m.opts.LimitStore, perMinute, time.Minute)
	if err != nil {
		panic(fmt.Sprintf("apikeys: build %s limiter: %v", tag, err))
	}

	keyFunc := func(r *http.Request) string {
		accountID, ok := auth.AccountFromContext(r.Context())
		if !ok {
			return ""
		}
		return "apikeys:" + tag + ":" + accountID.String()
	}

	return ratelimit.Middleware(limiter, keyFunc,
		ratelimit.WithOnLimitReached(func(w http.ResponseWriter, r *http.Request, result *ratelimit.Result) {
			retryAfter := max(int(result.RetryAfter().Seconds()), 1)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			_ = handler.JSONError(handler.ErrTooManyRequests).Render(w, r)
		}),
	)
}

type createRequest struct {
	Description string `json:"description" form:"description"`
}

func (m *module) create(ctx handler.Context, req createRequest) handler.Response {
	accountID, err := auth.RequireAccount(ctx)
	if err != nil {
		return handler.Error(err)
	}

	issued, err := m.opts.Service.Create(ctx, accountID, req.Description)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(issued, handler.WithStatus(http.StatusCreated))
}

type emptyRequest struct{}

func (m *module) list(ctx handler.Context, _ emptyRequest) handler.Response {
	accountID, err := auth.RequireAccount(ctx)
	if err != nil {
		return handler.Error(err)
	}

	keys, err := m.opts.Service.List(ctx, accountID)
	if err != nil {
		return handler.Error(err)
	}
	if keys == nil {
		keys = []apikeys.Key{}
	}
	return handler.JSON(keys)
}

type keyIDRequest struct {
	KeyID uuid.UUID `path:"keyID"`
}

func (m *module) regenerate(ctx handler.Context, req keyIDRequest) handler.Response {
	accountID, err := auth.RequireAccount(ctx)
	if err != nil {
		return handler.Error(err)
	}

	issued, err := m.opts.Service.Regenerate(ctx, accountID, req.KeyID)
	if err != nil {
		if errors.Is(err, apikeys.ErrKeyNotFound) {
			return handler.Error(errors.Join(handler.ErrNotFound, err))
		}
		return handler.Error(err)
	}
	return handler.JSON(issued)
}

func (m *module) revoke(ctx handler.Context, req keyIDRequest) handler.Response {
	accountID, err := auth.RequireAccount(ctx)
	if err != nil {
		return handler.Error(err)
	}

	if err := m.opts.Service.Revoke(ctx, accountID, req.KeyID); err != nil {
		if errors.Is(err, apikeys.ErrKeyNotFound) {
			return handler.Error(errors.Join(handler.ErrNotFound, err))
		}
		return handler.Error(err)
	}
	return handler.EmptyWithStatus(http.StatusNoContent)
}
