package sandbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskmate/svc/sandbox"
)

type fakeProvider struct {
	created  []string
	ensured  []string
	deleted  []string
	nextID   int
	infos    map[string]sandbox.Info
	createEr error
	ensureEr error
	deleteEr map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{infos: make(map[string]sandbox.Info), deleteEr: make(map[string]error)}
}

func (f *fakeProvider) Create(_ context.Context, password string) (sandbox.Info, error) {
	if f.createEr != nil {
		return sandbox.Info{}, f.createEr
	}
	f.nextID++
	id := "sbx-" + string(rune('a'+f.nextID-1))
	f.created = append(f.created, password)
	info := sandbox.Info{ID: id, State: sandbox.StateRunning}
	f.infos[id] = info
	return info, nil
}

func (f *fakeProvider) Ensure(_ context.Context, id string) (sandbox.Info, error) {
	if f.ensureEr != nil {
		return sandbox.Info{}, f.ensureEr
	}
	f.ensured = append(f.ensured, id)
	info, ok := f.infos[id]
	if !ok {
		info = sandbox.Info{ID: id, State: sandbox.StateRunning}
	}
	return info, nil
}

func (f *fakeProvider) Delete(_ context.Context, id string) error {
	if err := f.deleteEr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeStore struct {
	recs     map[uuid.UUID]*sandbox.Record
	touchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[uuid.UUID]*sandbox.Record)}
}

func (f *fakeStore) ByUser(_ context.Context, userID uuid.UUID) (*sandbox.Record, error) {
	rec, ok := f.recs[userID]
	if !ok {
		return nil, sandbox.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) Upsert(_ context.Context, rec sandbox.Record) error {
	cp := rec
	f.recs[rec.UserID] = &cp
	return nil
}

func (f *fakeStore) Touch(_ context.Context, userID uuid.UUID, activeAt time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	rec, ok := f.recs[userID]
	if !ok {
		return sandbox.ErrNotFound
	}
	rec.LastActiveAt = activeAt
	return nil
}

func (f *fakeStore) Delete(_ context.Context, userID uuid.UUID) error {
	delete(f.recs, userID)
	return nil
}

func (f *fakeStore) InactiveSince(_ context.Context, cutoff time.Time) ([]sandbox.Record, error) {
	var out []sandbox.Record
	for _, rec := range f.recs {
		if rec.LastActiveAt.Before(cutoff) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func pinnedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestServiceAcquire(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	t.Run("first acquire creates sandbox", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		store := newFakeStore()
		svc := sandbox.NewService(provider, store, sandbox.WithClock(pinnedClock(now)))
		userID := uuid.New()

		rec, err := svc.Acquire(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, userID, rec.UserID)
		assert.NotEmpty(t, rec.SandboxID)
		assert.NotEmpty(t, rec.SandboxPass)
		assert.Equal(t, now, rec.LastActiveAt)
		require.Len(t, provider.created, 1)
		assert.Empty(t, provider.ensured)
	})

	t.Run("second acquire reuses and touches", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		store := newFakeStore()
		clock := now
		svc := sandbox.NewService(provider, store, sandbox.WithClock(func() time.Time { return clock }))
		userID := uuid.New()

		first, err := svc.Acquire(context.Background(), userID)
		require.NoError(t, err)

		clock = now.Add(time.Hour)
		second, err := svc.Acquire(context.Background(), userID)
		require.NoError(t, err)

		assert.Equal(t, first.SandboxID, second.SandboxID)
		assert.Equal(t, now.Add(time.Hour), second.LastActiveAt)
		assert.Len(t, provider.created, 1)
		assert.Equal(t, []string{first.SandboxID}, provider.ensured)
		assert.Equal(t, now.Add(time.Hour), store.recs[userID].LastActiveAt)
	})

	t.Run("provider create failure surfaces", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		provider.createEr = errors.New("fleet unavailable")
		svc := sandbox.NewService(provider, newFakeStore())

		_, err := svc.Acquire(context.Background(), uuid.New())
		require.ErrorIs(t, err, sandbox.ErrProviderFailed)
	})

	t.Run("touch failure does not block acquire", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		store := newFakeStore()
		svc := sandbox.NewService(provider, store, sandbox.WithClock(pinnedClock(now)))
		userID := uuid.New()

		_, err := svc.Acquire(context.Background(), userID)
		require.NoError(t, err)

		store.touchErr = errors.New("db down")
		rec, err := svc.Acquire(context.Background(), userID)
		require.NoError(t, err)
		assert.NotEmpty(t, rec.SandboxID)
	})
}

func TestServiceCleanupInactive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	t.Run("reclaims only stale sandboxes", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		store := newFakeStore()
		svc := sandbox.NewService(provider, store, sandbox.WithClock(pinnedClock(now)))

		staleUser := uuid.New()
		freshUser := uuid.New()
		store.recs[staleUser] = &sandbox.Record{
			UserID:       staleUser,
			SandboxID:    "sbx-stale",
			LastActiveAt: now.Add(-8 * 24 * time.Hour),
		}
		store.recs[freshUser] = &sandbox.Record{
			UserID:       freshUser,
			SandboxID:    "sbx-fresh",
			LastActiveAt: now.Add(-time.Hour),
		}

		reclaimed, err := svc.CleanupInactive(context.Background(), sandbox.DefaultMaxIdle)
		require.NoError(t, err)
		assert.Equal(t, 1, reclaimed)
		assert.Equal(t, []string{"sbx-stale"}, provider.deleted)
		assert.NotContains(t, store.recs, staleUser)
		assert.Contains(t, store.recs, freshUser)
	})

	t.Run("per sandbox failure skips row and continues", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		store := newFakeStore()
		svc := sandbox.NewService(provider, store, sandbox.WithClock(pinnedClock(now)))

		brokenUser := uuid.New()
		staleUser := uuid.New()
		store.recs[brokenUser] = &sandbox.Record{
			UserID:       brokenUser,
			SandboxID:    "sbx-broken",
			LastActiveAt: now.Add(-9 * 24 * time.Hour),
		}
		store.recs[staleUser] = &sandbox.Record{
			UserID:       staleUser,
			SandboxID:    "sbx-old",
			LastActiveAt: now.Add(-8 * 24 * time.Hour),
		}
		provider.deleteEr["sbx-broken"] = errors.New("delete refused")

		reclaimed, err := svc.CleanupInactive(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, reclaimed)
		assert.Contains(t, store.recs, brokenUser)
		assert.NotContains(t, store.recs, staleUser)
	})
}
