package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Edge-function action tags. The function multiplexes all payment-provider
// interaction behind a single POST endpoint.
const (
	actionGetPlans              = "get_plans"
	actionGetBillingStatus      = "get_billing_status"
	actionGetNewSubscriptionURL = "get_new_subscription_url"
	actionGetBillingPortalURL   = "get_billing_portal_url"
)

// EdgeConfig configures the remote billing function client.
type EdgeConfig struct {
	FunctionURL string        `env:"BILLING_FUNCTION_URL"`
	ServiceKey  string        `env:"BILLING_SERVICE_KEY"`
	Timeout     time.Duration `env:"BILLING_FUNCTION_TIMEOUT" envDefault:"15s"`
}

// EdgeError is a non-empty error field or non-2xx status from the billing
// function. It wraps ErrProviderError for errors.Is checks.
type EdgeError struct {
	Action     string
	StatusCode int
	Message    string
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("billing function %s: %s (status %d)", e.Action, e.Message, e.StatusCode)
}

func (e *EdgeError) Unwrap() error {
	return ErrProviderError
}

// EdgeClient speaks the billing function's {action, args} envelope. It
// implements PlanSource, StatusSource, and Provider; each call is exactly
// one round trip canceled only by the request context.
type EdgeClient struct {
	cfg    EdgeConfig
	client *http.Client
}

// NewEdgeClient builds a client for the configured function URL.
func NewEdgeClient(cfg EdgeConfig) *EdgeClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EdgeClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type edgeRequest struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

type edgeResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

type edgePlan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price"`
	Currency    string   `json:"currency"`
	Interval    string   `json:"interval"`
	Features    []string `json:"features"`
	ButtonLabel string   `json:"button_label"`
	ButtonStyle string   `json:"button_style"`
}

type edgeURL struct {
	URL string `json:"url"`
}

// Plans fetches the plan list. Prices arrive as integer cents.
func (c *EdgeClient) Plans(ctx context.Context) ([]Plan, error) {
	data, err := c.call(ctx, actionGetPlans, nil)
	if err != nil {
		return nil, err
	}

	var raw []edgePlan
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrProviderError, fmt.Errorf("decode plans: %w", err))
	}

	plans := make([]Plan, 0, len(raw))
	for _, p := range raw {
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		plans = append(plans, Plan{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       Money{Amount: p.PriceCents, Currency: currency},
			Interval:    BillingInterval(p.Interval),
			Features:    p.Features,
			ButtonLabel: p.ButtonLabel,
			ButtonStyle: p.ButtonStyle,
		})
	}
	return plans, nil
}

// Status fetches the account's billing status.
func (c *EdgeClient) Status(ctx context.Context, accountID uuid.UUID) (Status, error) {
	data, err := c.call(ctx, actionGetBillingStatus, map[string]any{
		"account_id": accountID.String(),
	})
	if err != nil {
		return Status{}, err
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, errors.Join(ErrProviderError, fmt.Errorf("decode status: %w", err))
	}
	return status, nil
}

// CheckoutURL asks the function for a hosted checkout URL.
func (c *EdgeClient) CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error) {
	return c.urlAction(ctx, actionGetNewSubscriptionURL, map[string]any{
		"account_id":  req.AccountID.String(),
		"plan_id":     req.PlanID,
		"success_url": req.SuccessURL,
	})
}

// PortalURL asks the function for a billing-portal URL.
func (c *EdgeClient) PortalURL(ctx context.Context, req PortalRequest) (string, error) {
	return c.urlAction(ctx, actionGetBillingPortalURL, map[string]any{
		"account_id": req.AccountID.String(),
		"return_url": req.ReturnURL,
	})
}

func (c *EdgeClient) urlAction(ctx context.Context, action string, args map[string]any) (string, error) {
	data, err := c.call(ctx, action, args)
	if err != nil {
		return "", err
	}

	var out edgeURL
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errors.Join(ErrProviderError, fmt.Errorf("decode url: %w", err))
	}
	if out.URL == "" {
		return "", ErrEmptyURL
	}
	return out.URL, nil
}

func (c *EdgeClient) call(ctx context.Context, action string, args map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(edgeRequest{Action: action, Args: args})
	if err != nil {
		return nil, fmt.Errorf("billing: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.FunctionURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("billing: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	var envelope edgeResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= http.StatusMultipleChoices {
			return nil, &EdgeError{Action: action, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, errors.Join(ErrProviderError, fmt.Errorf("decode envelope: %w", err))
	}

	if envelope.Error != "" {
		return nil, &EdgeError{Action: action, StatusCode: resp.StatusCode, Message: envelope.Error}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &EdgeError{Action: action, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return envelope.Data, nil
}
