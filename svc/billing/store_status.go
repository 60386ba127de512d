package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Billing states reported by a status source.
const (
	StateActive         = "active"
	StateNoSubscription = "no_subscription"
)

// StoreStatusSource derives the billing status from the subscription store.
// Used with direct providers, where no remote status endpoint exists.
type StoreStatusSource struct {
	store SubscriptionStore
}

// NewStoreStatusSource builds a StatusSource over the store.
func NewStoreStatusSource(store SubscriptionStore) *StoreStatusSource {
	return &StoreStatusSource{store: store}
}

func (s *StoreStatusSource) Status(ctx context.Context, accountID uuid.UUID) (Status, error) {
	sub, err := s.store.ActiveByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return Status{State: StateNoSubscription}, nil
		}
		return Status{}, err
	}
	return Status{State: StateActive, PlanName: sub.PlanName, PriceID: sub.PriceID}, nil
}
