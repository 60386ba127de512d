package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Money is an amount in the smallest currency unit: $10.99 is
// {Amount: 1099, Currency: "USD"}.
type Money struct {
	Amount   int64
	Currency string
}

// Display formats the amount as a decimal with exactly two fraction digits
// using integer math, so 1099 renders as "10.99" and 500 as "5.00".
func (m Money) Display() string {
	amount := m.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// BillingInterval is the plan's billing frequency.
type BillingInterval string

const (
	IntervalNone    BillingInterval = "none"
	IntervalMonthly BillingInterval = "monthly"
	IntervalAnnual  BillingInterval = "annual"
)

// Plan is a billing tier as the plan source reports it. Fields pass through
// untouched; the only local derivation is price formatting.
type Plan struct {
	ID          string
	Name        string
	Description string
	Price       Money
	Interval    BillingInterval
	Features    []string
	ButtonLabel string
	ButtonStyle string
}

// PlanEntry is the display-ready projection of a Plan.
type PlanEntry struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	PriceDisplay string   `json:"price"`
	Currency     string   `json:"currency"`
	Interval     string   `json:"interval"`
	Features     []string `json:"features,omitempty"`
	ButtonLabel  string   `json:"button_label,omitempty"`
	ButtonStyle  string   `json:"button_style,omitempty"`
	Current      bool     `json:"current"`
}

// Entry projects the plan for display, marking it current when it matches
// the account's active price id.
func (p Plan) Entry(activePriceID string) PlanEntry {
	return PlanEntry{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		PriceDisplay: p.Price.Display(),
		Currency:     p.Price.Currency,
		Interval:     string(p.Interval),
		Features:     p.Features,
		ButtonLabel:  p.ButtonLabel,
		ButtonStyle:  p.ButtonStyle,
		Current:      p.ID != "" && p.ID == activePriceID,
	}
}

// Subscription is the account's active subscription row from the
// billing_subscriptions view. Read-only here; the billing function's owner
// materializes it.
type Subscription struct {
	AccountID uuid.UUID `json:"account_id"`
	PriceID   string    `json:"price_id"`
	PlanName  string    `json:"plan_name"`
	Status    string    `json:"status"`
}

// Status is the billing state reported by the billing function.
type Status struct {
	State    string `json:"status"`
	PlanName string `json:"plan_name,omitempty"`
	PriceID  string `json:"price_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Catalog is the plan-comparison payload: every available plan plus the
// account's subscription when one is active.
type Catalog struct {
	Plans        []PlanEntry   `json:"plans"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Summary is the billing-status payload.
type Summary struct {
	Status       Status        `json:"status"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Usage        time.Duration `json:"-"`
	UsageRuns    int           `json:"usage_runs"`
	CanManage    bool          `json:"can_manage"`
}

// CheckoutRequest asks the provider for a hosted checkout URL.
type CheckoutRequest struct {
	AccountID  uuid.UUID
	PlanID     string
	SuccessURL string
}

// PortalRequest asks the provider for a customer-portal URL.
type PortalRequest struct {
	AccountID uuid.UUID
	ReturnURL string
}

// PlanSource lists the available plans. One round trip, no caching.
type PlanSource interface {
	Plans(ctx context.Context) ([]Plan, error)
}

// StatusSource reports the account's billing status.
type StatusSource interface {
	Status(ctx context.Context, accountID uuid.UUID) (Status, error)
}

// Provider resolves hosted checkout and portal URLs.
type Provider interface {
	CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error)
	PortalURL(ctx context.Context, req PortalRequest) (string, error)
}

// SubscriptionStore reads the active subscription for an account, returning
// ErrSubscriptionNotFound when no active row exists.
type SubscriptionStore interface {
	ActiveByAccount(ctx context.Context, accountID uuid.UUID) (*Subscription, error)
}

// UsageResult is what a UsageFunc reports for the current period.
type UsageResult struct {
	Total time.Duration
	Runs  int
}

// UsageFunc computes the account's usage for the current period; wired to
// the threads service in production.
type UsageFunc func(ctx context.Context, accountID uuid.UUID) (UsageResult, error)
