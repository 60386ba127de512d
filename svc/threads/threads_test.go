package threads_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskmate/svc/threads"
)

type fakeStore struct {
	threadIDs []uuid.UUID
	runs      []threads.AgentRun
	thread    *threads.Thread
	public    bool
	member    bool
	err       error

	gotSince time.Time
}

func (f *fakeStore) IDsByAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return f.threadIDs, f.err
}

func (f *fakeStore) RunsStartedSince(ctx context.Context, threadIDs []uuid.UUID, since time.Time) ([]threads.AgentRun, error) {
	f.gotSince = since
	return f.runs, f.err
}

func (f *fakeStore) ThreadByID(ctx context.Context, threadID uuid.UUID) (*threads.Thread, error) {
	if f.thread == nil {
		return nil, threads.ErrThreadNotFound
	}
	return f.thread, nil
}

func (f *fakeStore) ProjectIsPublic(ctx context.Context, projectID uuid.UUID) (bool, error) {
	return f.public, nil
}

func (f *fakeStore) IsAccountMember(ctx context.Context, accountID, userID uuid.UUID) (bool, error) {
	return f.member, nil
}

func ptr[T any](v T) *T { return &v }

func TestMonthlyUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	accountID := uuid.New()
	threadID := uuid.New()

	now := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)
	clock := threads.WithClock(func() time.Time { return now })

	t.Run("sums completed and open runs", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{
			threadIDs: []uuid.UUID{threadID},
			runs: []threads.AgentRun{
				// Completed: exactly 30 minutes.
				{
					ThreadID:    threadID,
					StartedAt:   now.Add(-2 * time.Hour),
					CompletedAt: ptr(now.Add(-90 * time.Minute)),
				},
				// Open: counts up to now, 45 minutes so far.
				{
					ThreadID:  threadID,
					StartedAt: now.Add(-45 * time.Minute),
				},
			},
		}

		usage, err := threads.NewService(store, clock).MonthlyUsage(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, 75*time.Minute, usage.Total)
		assert.Equal(t, 2, usage.Runs)
		assert.Equal(t, 1, usage.OpenRuns)
	})

	t.Run("window starts at the first instant of the month", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{threadIDs: []uuid.UUID{threadID}}
		_, err := threads.NewService(store, clock).MonthlyUsage(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), store.gotSince)
	})

	t.Run("open runs grow on later evaluation", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{
			threadIDs: []uuid.UUID{threadID},
			runs: []threads.AgentRun{
				{ThreadID: threadID, StartedAt: now.Add(-10 * time.Minute)},
			},
		}

		first, err := threads.NewService(store, clock).MonthlyUsage(ctx, accountID)
		require.NoError(t, err)

		later := threads.WithClock(func() time.Time { return now.Add(20 * time.Minute) })
		second, err := threads.NewService(store, later).MonthlyUsage(ctx, accountID)
		require.NoError(t, err)

		assert.Equal(t, 10*time.Minute, first.Total)
		assert.Equal(t, 30*time.Minute, second.Total)
		assert.Greater(t, second.Total, first.Total)
	})

	t.Run("zero runs is a zero aggregate", func(t *testing.T) {
		t.Parallel()

		usage, err := threads.NewService(&fakeStore{threadIDs: []uuid.UUID{threadID}}, clock).
			MonthlyUsage(ctx, accountID)
		require.NoError(t, err)
		assert.Zero(t, usage.Total)
		assert.Equal(t, "0h 0m", threads.FormatDuration(usage.Total))
	})

	t.Run("no threads avoids the runs query", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		usage, err := threads.NewService(store, clock).MonthlyUsage(ctx, accountID)
		require.NoError(t, err)
		assert.Zero(t, usage.Runs)
		assert.True(t, store.gotSince.IsZero())
	})

	t.Run("store failure propagates", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{err: errors.New("pg down")}
		_, err := threads.NewService(store, clock).MonthlyUsage(ctx, accountID)
		assert.ErrorIs(t, err, threads.ErrQueryFailed)
	})
}

func TestVerifyAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	threadID := uuid.New()
	userID := uuid.New()
	accountID := uuid.New()
	projectID := uuid.New()

	t.Run("unknown thread", func(t *testing.T) {
		t.Parallel()

		err := threads.NewService(&fakeStore{}).VerifyAccess(ctx, threadID, userID)
		assert.ErrorIs(t, err, threads.ErrThreadNotFound)
	})

	t.Run("public project allows anyone", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{
			thread: &threads.Thread{ID: threadID, AccountID: accountID, ProjectID: ptr(projectID)},
			public: true,
		}
		assert.NoError(t, threads.NewService(store).VerifyAccess(ctx, threadID, userID))
	})

	t.Run("account member allowed", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{
			thread: &threads.Thread{ID: threadID, AccountID: accountID},
			member: true,
		}
		assert.NoError(t, threads.NewService(store).VerifyAccess(ctx, threadID, userID))
	})

	t.Run("non-member denied", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{
			thread: &threads.Thread{ID: threadID, AccountID: accountID, ProjectID: ptr(projectID)},
		}
		err := threads.NewService(store).VerifyAccess(ctx, threadID, userID)
		assert.ErrorIs(t, err, threads.ErrAccessDenied)
	})
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0h 0m"},
		{59 * time.Second, "0h 0m"},
		{time.Minute, "0h 1m"},
		{90 * time.Minute, "1h 30m"},
		{25*time.Hour + 5*time.Minute, "25h 5m"},
		{-time.Minute, "0h 0m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, threads.FormatDuration(tc.d), "d=%s", tc.d)
	}
}

func TestAgentRunElapsed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	t.Run("completed run is fixed", func(t *testing.T) {
		t.Parallel()

		run := threads.AgentRun{
			StartedAt:   now.Add(-time.Hour),
			CompletedAt: ptr(now.Add(-30 * time.Minute)),
		}
		assert.Equal(t, 30*time.Minute, run.Elapsed(now))
		assert.Equal(t, 30*time.Minute, run.Elapsed(now.Add(time.Hour)))
	})

	t.Run("clock skew clamps to zero", func(t *testing.T) {
		t.Parallel()

		run := threads.AgentRun{StartedAt: now.Add(time.Minute)}
		assert.Zero(t, run.Elapsed(now))
	})
}
