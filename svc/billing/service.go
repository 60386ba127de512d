package billing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskmate/pkg/async"
	"github.com/dmitrymomot/taskmate/pkg/logger"
)

// Service composes the billing reads and actions. Every operation is a
// single round trip per collaborator: no retries, no caching, no
// de-duplication across calls. Failures propagate as errors so the HTTP
// layer always renders a defined error state instead of an empty catalog or
// a crashed view.
type Service struct {
	plans       PlanSource
	status      StatusSource
	provider    Provider
	store       SubscriptionStore
	usage       UsageFunc
	freePriceID string
	log         *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithUsage wires the usage aggregator into Summary.
func WithUsage(fn UsageFunc) Option {
	return func(s *Service) { s.usage = fn }
}

// WithFreePlanID marks a price id as the free tier so Summary does not offer
// subscription management for it.
func WithFreePlanID(id string) Option {
	return func(s *Service) { s.freePriceID = id }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService wires the collaborators together. plans, status, provider, and
// store are required.
func NewService(plans PlanSource, status StatusSource, provider Provider, store SubscriptionStore, opts ...Option) *Service {
	s := &Service{
		plans:    plans,
		status:   status,
		provider: provider,
		store:    store,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog fetches the plan list and the account's active subscription
// concurrently and merges them into display entries. A missing subscription
// is a normal state; any other failure is returned to the caller.
func (s *Service) Catalog(ctx context.Context, accountID uuid.UUID) (*Catalog, error) {
	subFuture := async.Go(ctx, func(ctx context.Context) (*Subscription, error) {
		sub, err := s.store.ActiveByAccount(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrSubscriptionNotFound) {
				return nil, nil
			}
			return nil, errors.Join(ErrFetchSubscription, err)
		}
		return sub, nil
	})
	plansFuture := async.Go(ctx, func(ctx context.Context) ([]Plan, error) {
		plans, err := s.plans.Plans(ctx)
		if err != nil {
			return nil, errors.Join(ErrFetchPlans, err)
		}
		return plans, nil
	})

	sub, subErr := subFuture.Await()
	plans, plansErr := plansFuture.Await()
	if err := errors.Join(subErr, plansErr); err != nil {
		s.log.ErrorContext(ctx, "load plan catalog",
			logger.Error(err),
			logger.AccountID(accountID),
			logger.Component("billing"),
		)
		return nil, err
	}

	activePriceID := ""
	if sub != nil {
		activePriceID = sub.PriceID
	}

	entries := make([]PlanEntry, 0, len(plans))
	for _, plan := range plans {
		entries = append(entries, plan.Entry(activePriceID))
	}

	return &Catalog{Plans: entries, Subscription: sub}, nil
}

// Summary fetches the billing status, the active subscription, and the
// current-period usage. CanManage is set only when an active paid price id
// is present.
func (s *Service) Summary(ctx context.Context, accountID uuid.UUID) (*Summary, error) {
	statusFuture := async.Go(ctx, func(ctx context.Context) (Status, error) {
		st, err := s.status.Status(ctx, accountID)
		if err != nil {
			return Status{}, errors.Join(ErrFetchStatus, err)
		}
		return st, nil
	})
	subFuture := async.Go(ctx, func(ctx context.Context) (*Subscription, error) {
		sub, err := s.store.ActiveByAccount(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrSubscriptionNotFound) {
				return nil, nil
			}
			return nil, errors.Join(ErrFetchSubscription, err)
		}
		return sub, nil
	})

	status, statusErr := statusFuture.Await()
	sub, subErr := subFuture.Await()
	if err := errors.Join(statusErr, subErr); err != nil {
		return nil, err
	}

	summary := &Summary{Status: status, Subscription: sub}

	if s.usage != nil {
		usage, err := s.usage(ctx, accountID)
		if err != nil {
			return nil, errors.Join(ErrFetchUsage, err)
		}
		summary.Usage = usage.Total
		summary.UsageRuns = usage.Runs
	}

	summary.CanManage = sub != nil && sub.PriceID != "" && sub.PriceID != s.freePriceID

	return summary, nil
}

// CheckoutURL validates the plan against the current catalog load (any
// listed plan is selectable) and asks the provider for a hosted checkout
// URL. One round trip each; the request context is the only cancellation.
func (s *Service) CheckoutURL(ctx context.Context, accountID uuid.UUID, planID, returnURL string) (string, error) {
	plans, err := s.plans.Plans(ctx)
	if err != nil {
		return "", errors.Join(ErrFetchPlans, err)
	}

	found := false
	for _, plan := range plans {
		if plan.ID == planID {
			found = true
			break
		}
	}
	if !found {
		return "", ErrUnknownPlan
	}

	url, err := s.provider.CheckoutURL(ctx, CheckoutRequest{
		AccountID:  accountID,
		PlanID:     planID,
		SuccessURL: returnURL,
	})
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", ErrEmptyURL
	}

	s.log.InfoContext(ctx, "checkout url issued",
		logger.AccountID(accountID),
		logger.PlanID(planID),
		logger.Component("billing"),
	)
	return url, nil
}

// PortalURL requires an active subscription and asks the provider for a
// customer-portal URL.
func (s *Service) PortalURL(ctx context.Context, accountID uuid.UUID, returnURL string) (string, error) {
	if _, err := s.store.ActiveByAccount(ctx, accountID); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return "", err
		}
		return "", errors.Join(ErrFetchSubscription, err)
	}

	url, err := s.provider.PortalURL(ctx, PortalRequest{
		AccountID: accountID,
		ReturnURL: returnURL,
	})
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", ErrEmptyURL
	}
	return url, nil
}
