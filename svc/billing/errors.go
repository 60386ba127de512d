package billing

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("billing: no active subscription")
	ErrUnknownPlan          = errors.New("billing: plan not in catalog")
	ErrProviderError        = errors.New("billing: provider error")
	ErrFetchPlans           = errors.New("billing: fetch plans")
	ErrFetchStatus          = errors.New("billing: fetch billing status")
	ErrFetchSubscription    = errors.New("billing: fetch subscription")
	ErrFetchUsage           = errors.New("billing: fetch usage")
	ErrEmptyURL             = errors.New("billing: provider returned no url")
)
