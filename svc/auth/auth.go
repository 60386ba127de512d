// Package auth resolves the acting account for a request. Identity comes
// from a Bearer JWT whose sub claim is the account id, from an X-API-Key
// header resolved through the key service, or from a token query parameter
// for clients that cannot set headers.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskmate/pkg/jwt"
)

var (
	ErrNoIdentity      = errors.New("auth: no identity on request")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrInvalidSubject  = errors.New("auth: token subject is not an account id")
	ErrMissingVerifier = errors.New("auth: token verifier is required")
)

const (
	headerAuthorization = "Authorization"
	headerAPIKey        = "X-API-Key"
	bearerPrefix        = "Bearer "
	tokenQueryParam     = "token"
)

// KeyAuthenticator resolves an API key to its account.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, plaintext string) (uuid.UUID, error)
}

// Resolver extracts and verifies request identity.
type Resolver struct {
	tokens *jwt.Service
	keys   KeyAuthenticator
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithKeyAuthenticator enables X-API-Key resolution.
func WithKeyAuthenticator(keys KeyAuthenticator) ResolverOption {
	return func(r *Resolver) {
		r.keys = keys
	}
}

// NewResolver builds a Resolver over the JWT service.
func NewResolver(tokens *jwt.Service, opts ...ResolverOption) (*Resolver, error) {
	if tokens == nil {
		return nil, ErrMissingVerifier
	}
	r := &Resolver{tokens: tokens}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the account id carried by the request. Sources are tried
// in order: Authorization bearer token, X-API-Key, token query parameter.
// A request with no credentials at all reports ErrNoIdentity; a present
// but bad credential reports ErrInvalidToken.
func (r *Resolver) Resolve(req *http.Request) (uuid.UUID, error) {
	if raw, ok := bearerToken(req); ok {
		return r.fromJWT(raw)
	}
	if key := req.Header.Get(headerAPIKey); key != "" && r.keys != nil {
		accountID, err := r.keys.Authenticate(req.Context(), key)
		if err != nil {
			return uuid.Nil, errors.Join(ErrInvalidToken, err)
		}
		return accountID, nil
	}
	if raw := req.URL.Query().Get(tokenQueryParam); raw != "" {
		return r.fromJWT(raw)
	}
	return uuid.Nil, ErrNoIdentity
}

func (r *Resolver) fromJWT(raw string) (uuid.UUID, error) {
	var claims jwt.StandardClaims
	if err := r.tokens.Parse(raw, &claims); err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, err)
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidSubject, err)
	}
	return accountID, nil
}

func bearerToken(req *http.Request) (string, bool) {
	h := req.Header.Get(headerAuthorization)
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix)), true
}
