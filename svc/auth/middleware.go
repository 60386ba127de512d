package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskmate/handler"
)

type contextKey struct{}

var accountKey contextKey

// WithAccount stores the account id in the context.
func WithAccount(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey, accountID)
}

// AccountFromContext reports the account id set by the middleware.
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// RequireAccount returns the account id or handler.ErrUnauthorized when
// the request carried no identity.
func RequireAccount(ctx context.Context) (uuid.UUID, error) {
	id, ok := AccountFromContext(ctx)
	if !ok {
		return uuid.Nil, handler.ErrUnauthorized
	}
	return id, nil
}

// Middleware rejects requests without a valid identity and stores the
// resolved account id in the request context.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := resolver.Resolve(r)
			if err != nil {
				renderUnauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), accountID)))
		})
	}
}

// OptionalMiddleware stores the identity when present and passes
// anonymous requests through untouched. Invalid credentials are still
// rejected so a bad token never degrades into an anonymous session.
func OptionalMiddleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := resolver.Resolve(r)
			switch {
			case err == nil:
				r = r.WithContext(WithAccount(r.Context(), accountID))
			case errors.Is(err, ErrNoIdentity):
				// anonymous is fine here
			default:
				renderUnauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func renderUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	_ = handler.JSONError(errors.Join(handler.ErrUnauthorized, err)).Render(w, r)
}
