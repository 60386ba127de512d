package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/taskmate/pkg/pg"
)

// rowQuerier is the slice of pgxpool.Pool the store needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore reads the billing_subscriptions view. The view is external
// schema: populated by the billing function's owner, never written here.
type PGStore struct {
	db rowQuerier
}

// NewPGStore builds a store over a pgx pool or transaction.
func NewPGStore(db rowQuerier) *PGStore {
	return &PGStore{db: db}
}

const activeSubscriptionQuery = `
SELECT account_id, price_id, plan_name, status
FROM billing_subscriptions
WHERE account_id = $1 AND status = 'active'
LIMIT 1`

// ActiveByAccount returns the account's active subscription row, or
// ErrSubscriptionNotFound when none exists.
func (s *PGStore) ActiveByAccount(ctx context.Context, accountID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := s.db.QueryRow(ctx, activeSubscriptionQuery, accountID).
		Scan(&sub.AccountID, &sub.PriceID, &sub.PlanName, &sub.Status)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrFetchSubscription, err)
	}
	return &sub, nil
}
