package ratelimit

import (
	"context"
	"time"
)

// FixedWindow allows at most limit requests per interval. The window starts
// on the first request for a key and resets when the store TTL expires.
// Denied requests still bump the counter, which keeps the store round trip
// atomic at the cost of slightly extending the penalty for clients that keep
// hammering a closed window.
type FixedWindow struct {
	store    Store
	limit    int
	interval time.Duration
}

// NewFixedWindow builds a limiter over the given store.
func NewFixedWindow(store Store, limit int, interval time.Duration) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &FixedWindow{store: store, limit: limit, interval: interval}, nil
}

func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	return fw.AllowN(ctx, key, 1)
}

func (fw *FixedWindow) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	if n <= 0 {
		n = 1
	}

	count, ttl, err := fw.store.Increment(ctx, key, n, fw.interval)
	if err != nil {
		return nil, err
	}

	return fw.result(count <= int64(fw.limit), count, ttl), nil
}

// Status reports the current window without consuming a slot.
func (fw *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	count, ttl, err := fw.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	return fw.result(count < int64(fw.limit), count, ttl), nil
}

func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return fw.store.Delete(ctx, key)
}

func (fw *FixedWindow) result(allowed bool, count int64, ttl time.Duration) *Result {
	if ttl <= 0 {
		ttl = fw.interval
	}
	remaining := int64(fw.limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Limit:     fw.limit,
		Remaining: int(remaining),
		ResetAt:   time.Now().Add(ttl),
	}
}
