// Package ratelimit enforces fixed-window request limits ("3 per minute")
// keyed by an arbitrary request attribute, typically the authenticated
// account. Counters live in a pluggable Store; a Redis store is provided for
// multi-instance deployments and a memory store for tests and single-node
// setups.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidLimit    = errors.New("ratelimit: limit must be positive")
	ErrInvalidInterval = errors.New("ratelimit: interval must be positive")
	ErrKeyRequired     = errors.New("ratelimit: key is required")
	ErrStoreRequired   = errors.New("ratelimit: store is required")
)

// Result reports the outcome of a limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying, or 0
// when the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Limiter is the algorithm side of the package.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	AllowN(ctx context.Context, key string, n int) (*Result, error)
	Status(ctx context.Context, key string) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Store is the counter backend. Increment atomically adds n to the window
// counter for key, starting the window on first increment, and returns the
// new count together with the remaining window TTL.
type Store interface {
	Increment(ctx context.Context, key string, n int, window time.Duration) (count int64, ttl time.Duration, err error)
	Get(ctx context.Context, key string) (count int64, ttl time.Duration, err error)
	Delete(ctx context.Context, key string) error
}

// KeyFunc extracts the limit key from a request. An empty key skips limiting.
type KeyFunc func(*http.Request) string

// maxKeyLength bounds stored keys; longer composites are hashed.
const maxKeyLength = 64

// Composite joins several key funcs into one key, hashing the result when it
// grows past maxKeyLength.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}

		combined := strings.Join(parts, ":")
		if len(combined) > maxKeyLength {
			sum := sha256.Sum256([]byte(combined))
			return hex.EncodeToString(sum[:16])
		}
		return combined
	}
}
