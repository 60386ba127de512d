package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/taskmate/pkg/binder"
)

// HandlerFunc is a type-safe HTTP handler. C is the context type (usually
// Context), R the request struct populated by the binders.
type HandlerFunc[C Context, R any] func(ctx C, req R) Response

// Response renders itself onto the response writer. Render errors are
// routed to the wrap's ErrorHandler.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind parses part of an HTTP request into v. A binder that does not apply
// to the request (wrong content type, no matching tags) returns
// binder.ErrBinderNotApplicable and is skipped.
type Bind func(r *http.Request, v any) error

// ErrorHandler renders binding, handler, and rendering failures.
type ErrorHandler[C Context] func(ctx C, err error)

// ErrNilResponse is reported when a handler returns nil instead of a Response.
var ErrNilResponse = errors.New("handler: nil response")

type wrapConfig[C Context] struct {
	binders        []Bind
	errorHandler   ErrorHandler[C]
	contextFactory func(http.ResponseWriter, *http.Request) C
}

// WrapOption configures Wrap.
type WrapOption[C Context] func(*wrapConfig[C])

// WithBinders appends request binders, applied in order.
func WithBinders[C Context](binders ...Bind) WrapOption[C] {
	return func(c *wrapConfig[C]) {
		c.binders = append(c.binders, binders...)
	}
}

// WithErrorHandler replaces the default error handler.
func WithErrorHandler[C Context](h ErrorHandler[C]) WrapOption[C] {
	return func(c *wrapConfig[C]) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithContextFactory replaces the default Context construction; required when
// C is a custom context type.
func WithContextFactory[C Context](f func(http.ResponseWriter, *http.Request) C) WrapOption[C] {
	return func(c *wrapConfig[C]) {
		if f != nil {
			c.contextFactory = f
		}
	}
}

// defaultErrorHandler degrades to plain-text errors; routers are expected to
// install the JSON error handler from NewErrorHandler.
func defaultErrorHandler[C Context](ctx C, err error) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		http.Error(ctx.ResponseWriter(), httpErr.Key, httpErr.Code)
		return
	}
	http.Error(ctx.ResponseWriter(), err.Error(), http.StatusInternalServerError)
}

// Wrap converts a typed HandlerFunc into a stdlib http.HandlerFunc.
//
//	r.Post("/checkout", handler.Wrap(checkout,
//		handler.WithBinders[handler.Context](binder.Form()),
//		handler.WithErrorHandler[handler.Context](errHandler),
//	))
func Wrap[C Context, R any](h HandlerFunc[C, R], opts ...WrapOption[C]) http.HandlerFunc {
	cfg := &wrapConfig[C]{
		errorHandler: defaultErrorHandler[C],
		contextFactory: func(w http.ResponseWriter, r *http.Request) C {
			ctx := NewContext(w, r)
			if c, ok := any(ctx).(C); ok {
				return c
			}
			panic("handler: custom context type requires WithContextFactory")
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := cfg.contextFactory(w, r)

		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				if errors.Is(err, binder.ErrBinderNotApplicable) {
					continue
				}
				cfg.errorHandler(ctx, err)
				return
			}
		}

		resp := h(ctx, req)
		if resp == nil {
			cfg.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := resp.Render(w, r); err != nil {
			cfg.errorHandler(ctx, err)
		}
	}
}
