// Package billing exposes the plan catalog, billing status, and the
// checkout and portal redirects over HTTP. In managed mode plan changes go
// through the payment provider; installs that handle plan changes
// themselves mount a select endpoint instead.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/taskmate/handler"
	"github.com/dmitrymomot/taskmate/pkg/binder"
	"github.com/dmitrymomot/taskmate/svc/auth"
	"github.com/dmitrymomot/taskmate/svc/billing"
	"github.com/dmitrymomot/taskmate/svc/threads"
)

// ErrAccountMismatch is reported when the form names an account the caller
// is not authorized to act for.
var ErrAccountMismatch = errors.New("billing: form account does not match identity")

// RouterOptions configures the billing module.
type RouterOptions struct {
	Service *billing.Service
	Log     *slog.Logger

	// SelectPlan switches the module into unmanaged mode: plan changes are
	// acknowledged through this callback and never reach the payment
	// provider. Nil means managed mode and no select endpoint.
	SelectPlan func(ctx context.Context, accountID uuid.UUID, planID string) error

	// Authorize guards the form-supplied account id against the request
	// identity. The default requires an exact match.
	Authorize func(ctx context.Context, accountID uuid.UUID) error
}

// Router mounts the billing endpoints.
func Router(opts RouterOptions) chi.Router {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Authorize == nil {
		opts.Authorize = func(ctx context.Context, accountID uuid.UUID) error {
			id, err := auth.RequireAccount(ctx)
			if err != nil {
				return err
			}
			if id != accountID {
				return errors.Join(handler.ErrForbidden, ErrAccountMismatch)
			}
			return nil
		}
	}

	m := &module{opts: opts, errorHandler: handler.NewErrorHandler(opts.Log)}

	r := chi.NewRouter()
	r.Get("/plans", handler.Wrap(m.plans,
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	r.Get("/status", handler.Wrap(m.status,
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	r.Post("/checkout", handler.Wrap(m.checkout,
		handler.WithBinders[handler.Context](binder.Form()),
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	r.Post("/portal", handler.Wrap(m.portal,
		handler.WithBinders[handler.Context](binder.Form()),
		handler.WithErrorHandler[handler.Context](m.errorHandler),
	))
	if opts.SelectPlan != nil {
		r.Post("/select", handler.Wrap(m.selectPlan,
			handler.WithBinders[handler.Context](binder.Form()),
			handler.WithErrorHandler[handler.Context](m.errorHandler),
		))
	}
	return r
}

type module struct {
	opts         RouterOptions
	errorHandler handler.ErrorHandler[handler.Context]
}

type emptyRequest struct{}

func (m *module) plans(ctx handler.Context, _ emptyRequest) handler.Response {
	accountID, err := auth.RequireAccount(ctx)
	if err != nil {
		return handler.Error(err)
	}

	catalog, err := m.opts.Service.Catalog(ctx, accountID)
	if err != nil {
		return handler.Error(errors.Join(handler.ErrServiceUnavailable, err))
	}
	return handler.JSON(catalog)
}

// statusPayload is Summary plus the usage rendered for display.
type statusPayload struct {
	*billing.Summary
	UsageDisplay string `json:"usage"`
}

func (m *module) status(ctx handler.Context, _ emptyRequest) handler.Response {
	accountID, err := auth.RequireAccount(ctx)
	if err != nil {
		return handler.Error(err)
	}

	summary, err := m.opts.Service.Summary(ctx, accountID)
	if err != nil {
		return handler.Error(errors.Join(handler.ErrServiceUnavailable, err))
	}
	return handler.JSON(statusPayload{
		Summary:      summary,
		UsageDisplay: threads.FormatDuration(summary.Usage),
	})
}

type checkoutForm struct {
	AccountID uuid.UUID `form:"accountId"`
	PlanID    string    `form:"planId"`
	ReturnURL string    `form:"returnUrl"`
}

func (f checkoutForm) validate() error {
	errs := handler.ValidationError{}
	if f.AccountID == uuid.Nil {
		errs.Add("accountId", "account id is required")
	}
	if f.PlanID == "" {
		errs.Add("planId", "plan id is required")
	}
	if f.ReturnURL == "" {
		errs.Add("returnUrl", "return url is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (m *module) checkout(ctx handler.Context, req checkoutForm) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	if err := m.opts.Authorize(ctx, req.AccountID); err != nil {
		return handler.Error(err)
	}

	url, err := m.opts.Service.CheckoutURL(ctx, req.AccountID, req.PlanID, req.ReturnURL)
	if err != nil {
		if errors.Is(err, billing.ErrUnknownPlan) {
			return handler.Error(errors.Join(handler.ErrBadRequest, err))
		}
		return handler.Error(errors.Join(handler.ErrServiceUnavailable, err))
	}
	return handler.Redirect(url)
}

type portalForm struct {
	AccountID uuid.UUID `form:"accountId"`
	ReturnURL string    `form:"returnUrl"`
}

func (f portalForm) validate() error {
	errs := handler.ValidationError{}
	if f.AccountID == uuid.Nil {
		errs.Add("accountId", "account id is required")
	}
	if f.ReturnURL == "" {
		errs.Add("returnUrl", "return url is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (m *module) portal(ctx handler.Context, req portalForm) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	if err := m.opts.Authorize(ctx, req.AccountID); err != nil {
		return handler.Error(err)
	}

	url, err := m.opts.Service.PortalURL(ctx, req.AccountID, req.ReturnURL)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return handler.Error(errors.Join(handler.ErrNotFound, err))
		}
		return handler.Error(errors.Join(handler.ErrServiceUnavailable, err))
	}
	return handler.Redirect(url)
}

type selectForm struct {
	AccountID uuid.UUID `form:"accountId"`
	PlanID    string    `form:"planId"`
}

func (m *module) selectPlan(ctx handler.Context, req selectForm) handler.Response {
	if req.AccountID == uuid.Nil || req.PlanID == "" {
		errs := handler.ValidationError{}
		if req.AccountID == uuid.Nil {
			errs.Add("accountId", "account id is required")
		}
		if req.PlanID == "" {
			errs.Add("planId", "plan id is required")
		}
		return handler.Error(errs)
	}
	if err := m.opts.Authorize(ctx, req.AccountID); err != nil {
		return handler.Error(err)
	}

	if err := m.opts.SelectPlan(ctx, req.AccountID, req.PlanID); err != nil {
		return handler.Error(err)
	}
	return handler.JSON(map[string]string{"plan_id": req.PlanID, "status": "accepted"},
		handler.WithStatus(http.StatusAccepted),
	)
}
