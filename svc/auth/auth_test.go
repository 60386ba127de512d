package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskmate/pkg/jwt"
	"github.com/dmitrymomot/taskmate/svc/auth"
)

type fakeKeys struct {
	accounts map[string]uuid.UUID
	err      error
}

func (f *fakeKeys) Authenticate(_ context.Context, plaintext string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id, ok := f.accounts[plaintext]
	if !ok {
		return uuid.Nil, auth.ErrInvalidToken
	}
	return id, nil
}

func signedToken(t *testing.T, svc *jwt.Service, subject string) string {
	t.Helper()
	token, err := svc.Generate(jwt.StandardClaims{
		Subject:   subject,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return token
}

func TestResolverResolve(t *testing.T) {
	t.Parallel()

	tokens, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)
	accountID := uuid.New()

	t.Run("bearer token", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, tokens, accountID.String()))

		got, err := resolver.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("tampered signature rejected", func(t *testing.T) {
		t.Parallel()

		otherKey, err := jwt.NewFromString("another-key")
		require.NoError(t, err)
		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, otherKey, accountID.String()))

		_, err = resolver.Resolve(req)
		require.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("non uuid subject rejected", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, tokens, "service-account"))

		_, err = resolver.Resolve(req)
		require.ErrorIs(t, err, auth.ErrInvalidSubject)
	})

	t.Run("api key header", func(t *testing.T) {
		t.Parallel()

		keys := &fakeKeys{accounts: map[string]uuid.UUID{"tm_abc_secret": accountID}}
		resolver, err := auth.NewResolver(tokens, auth.WithKeyAuthenticator(keys))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", "tm_abc_secret")

		got, err := resolver.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("token query fallback", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/?token="+signedToken(t, tokens, accountID.String()), nil)

		got, err := resolver.Resolve(req)
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("no credentials", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		_, err = resolver.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, auth.ErrNoIdentity)
	})

	t.Run("nil verifier rejected", func(t *testing.T) {
		t.Parallel()

		_, err := auth.NewResolver(nil)
		require.ErrorIs(t, err, auth.ErrMissingVerifier)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	tokens, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)
	accountID := uuid.New()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.RequireAccount(r.Context())
		require.NoError(t, err)
		w.Write([]byte(id.String()))
	})

	t.Run("injects account id", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, tokens, accountID.String()))
		rec := httptest.NewRecorder()

		auth.Middleware(resolver)(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, accountID.String(), rec.Body.String())
	})

	t.Run("missing identity gets 401 envelope", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		auth.Middleware(resolver)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unauthorized", body.Error.Code)
	})

	t.Run("optional passes anonymous through", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		anonymous := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := auth.AccountFromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		auth.OptionalMiddleware(resolver)(anonymous).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("optional still rejects bad token", func(t *testing.T) {
		t.Parallel()

		resolver, err := auth.NewResolver(tokens)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()

		auth.OptionalMiddleware(resolver)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
