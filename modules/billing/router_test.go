package billing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingmod "github.com/dmitrymomot/taskmate/modules/billing"
	"github.com/dmitrymomot/taskmate/svc/auth"
	"github.com/dmitrymomot/taskmate/svc/billing"
)

type fakeBackend struct {
	plans       []billing.Plan
	status      billing.Status
	sub         *billing.Subscription
	checkoutURL string
	portalURL   string
	providerErr error
}

func (f *fakeBackend) Plans(context.Context) ([]billing.Plan, error) {
	return f.plans, nil
}

func (f *fakeBackend) Status(context.Context, uuid.UUID) (billing.Status, error) {
	return f.status, nil
}

func (f *fakeBackend) ActiveByAccount(context.Context, uuid.UUID) (*billing.Subscription, error) {
	if f.sub == nil {
		return nil, billing.ErrSubscriptionNotFound
	}
	return f.sub, nil
}

func (f *fakeBackend) CheckoutURL(context.Context, billing.CheckoutRequest) (string, error) {
	if f.providerErr != nil {
		return "", f.providerErr
	}
	return f.checkoutURL, nil
}

func (f *fakeBackend) PortalURL(context.Context, billing.PortalRequest) (string, error) {
	if f.providerErr != nil {
		return "", f.providerErr
	}
	return f.portalURL, nil
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		plans: []billing.Plan{
			{ID: "price_free", Name: "Free", Price: billing.Money{Amount: 0, Currency: "USD"}, Interval: billing.IntervalMonthly},
			{ID: "price_pro", Name: "Pro", Price: billing.Money{Amount: 2900, Currency: "USD"}, Interval: billing.IntervalMonthly},
		},
		status:      billing.Status{State: "no_subscription"},
		checkoutURL: "https://pay.example.com/checkout/abc",
		portalURL:   "https://pay.example.com/portal/abc",
	}
}

func serve(t *testing.T, opts billingmod.RouterOptions, accountID uuid.UUID, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	if accountID != uuid.Nil {
		req = req.WithContext(auth.WithAccount(req.Context(), accountID))
	}
	billingmod.Router(opts).ServeHTTP(rec, req)
	return rec
}

func TestRouterPlans(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	svc := billing.NewService(backend, backend, backend, backend)
	accountID := uuid.New()

	rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID,
		httptest.NewRequest(http.MethodGet, "/plans", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data billing.Catalog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Plans, 2)
	assert.Equal(t, "0.00", body.Data.Plans[0].PriceDisplay)
	assert.Equal(t, "29.00", body.Data.Plans[1].PriceDisplay)
}

func TestRouterStatus(t *testing.T) {
	t.Parallel()

	backend := newBackend()
	backend.status = billing.Status{State: "active", PlanName: "Pro", PriceID: "price_pro"}
	backend.sub = &billing.Subscription{PriceID: "price_pro", PlanName: "Pro", Status: "active"}
	usage := func(context.Context, uuid.UUID) (billing.UsageResult, error) {
		return billing.UsageResult{Total: 95 * time.Minute, Runs: 4}, nil
	}
	svc := billing.NewService(backend, backend, backend, backend, billing.WithUsage(usage))

	rec := serve(t, billingmod.RouterOptions{Service: svc}, uuid.New(),
		httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Status    billing.Status `json:"status"`
			Usage     string         `json:"usage"`
			UsageRuns int            `json:"usage_runs"`
			CanManage bool           `json:"can_manage"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "active", body.Data.Status.State)
	assert.Equal(t, "1h 35m", body.Data.Usage)
	assert.Equal(t, 4, body.Data.UsageRuns)
	assert.True(t, body.Data.CanManage)
}

func TestRouterCheckout(t *testing.T) {
	t.Parallel()

	t.Run("redirects to checkout url", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		form := url.Values{
			"accountId": {accountID.String()},
			"planId":    {"price_pro"},
			"returnUrl": {"https://app.example.com/billing"},
		}
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID, req)

		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "https://pay.example.com/checkout/abc", rec.Header().Get("Location"))
	})

	t.Run("unknown plan is a client error", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		form := url.Values{
			"accountId": {accountID.String()},
			"planId":    {"price_nope"},
			"returnUrl": {"https://app.example.com/billing"},
		}
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("provider failure means no redirect", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		backend.providerErr = billing.ErrProviderError
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		form := url.Values{
			"accountId": {accountID.String()},
			"planId":    {"price_pro"},
			"returnUrl": {"https://app.example.com/billing"},
		}
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("foreign account id rejected", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		svc := billing.NewService(backend, backend, backend, backend)

		form := url.Values{
			"accountId": {uuid.NewString()},
			"planId":    {"price_pro"},
			"returnUrl": {"https://app.example.com/billing"},
		}
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, uuid.New(), req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing fields are a validation error", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(""))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestRouterPortal(t *testing.T) {
	t.Parallel()

	t.Run("redirects subscribed account", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		backend.sub = &billing.Subscription{PriceID: "price_pro", Status: "active"}
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		form := url.Values{
			"accountId": {accountID.String()},
			"returnUrl": {"https://app.example.com/billing"},
		}
		req := httptest.NewRequest(http.MethodPost, "/portal", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID, req)

		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "https://pay.example.com/portal/abc", rec.Header().Get("Location"))
	})

	t.Run("no subscription is not found", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		form := url.Values{
			"accountId": {accountID.String()},
			"returnUrl": {"https://app.example.com/billing"},
		}
		req := httptest.NewRequest(http.MethodPost, "/portal", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouterSelect(t *testing.T) {
	t.Parallel()

	t.Run("absent without callback", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		form := url.Values{
			"accountId": {accountID.String()},
			"planId":    {"price_pro"},
		}
		req := httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, billingmod.RouterOptions{Service: svc}, accountID, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invokes callback without provider call", func(t *testing.T) {
		t.Parallel()

		backend := newBackend()
		backend.providerErr = billing.ErrProviderError // any provider call would fail the test
		svc := billing.NewService(backend, backend, backend, backend)
		accountID := uuid.New()

		var gotPlan string
		opts := billingmod.RouterOptions{
			Service: svc,
			SelectPlan: func(_ context.Context, id uuid.UUID, planID string) error {
				assert.Equal(t, accountID, id)
				gotPlan = planID
				return nil
			},
		}

		form := url.Values{
			"accountId": {accountID.String()},
			"planId":    {"price_pro"},
		}
		req := httptest.NewRequest(http.MethodPost, "/select", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(t, opts, accountID, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "price_pro", gotPlan)
		assert.Empty(t, rec.Header().Get("Location"))
	})
}
