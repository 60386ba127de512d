// Package threads reads conversation threads and their agent runs: monthly
// usage aggregation for billing and thread access verification for the API
// surface. All tables here are external schema owned by the agent backend;
// this service only reads them.
package threads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrThreadNotFound = errors.New("threads: thread not found")
	ErrAccessDenied   = errors.New("threads: access denied")
	ErrQueryFailed    = errors.New("threads: query failed")
)

// Thread is a conversation thread belonging to an account, optionally
// attached to a project.
type Thread struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	ProjectID *uuid.UUID
}

// AgentRun is one agent execution inside a thread. CompletedAt is nil while
// the run is still open.
type AgentRun struct {
	ID          uuid.UUID
	ThreadID    uuid.UUID
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Elapsed is the run's duration at the given instant: completed runs count
// start to completion, open runs count start to now. Evaluating an open run
// later therefore yields a larger value.
func (r AgentRun) Elapsed(now time.Time) time.Duration {
	end := now
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	if end.Before(r.StartedAt) {
		return 0
	}
	return end.Sub(r.StartedAt)
}

// Usage is the aggregate over a set of runs.
type Usage struct {
	Total    time.Duration
	Runs     int
	OpenRuns int
}

// Store is the read surface over threads, agent_runs, projects, and account
// membership.
type Store interface {
	IDsByAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
	RunsStartedSince(ctx context.Context, threadIDs []uuid.UUID, since time.Time) ([]AgentRun, error)
	ThreadByID(ctx context.Context, threadID uuid.UUID) (*Thread, error)
	ProjectIsPublic(ctx context.Context, projectID uuid.UUID) (bool, error)
	IsAccountMember(ctx context.Context, accountID, userID uuid.UUID) (bool, error)
}

// Service computes usage and answers access questions.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithClock replaces the time source; tests pin it.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service on the store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MonthlyUsage sums elapsed time of the account's agent runs started on or
// after the first instant of the current calendar month (UTC). Open runs
// count up to now, so the aggregate grows on re-evaluation until they
// complete. Zero runs is a zero aggregate, not an error.
func (s *Service) MonthlyUsage(ctx context.Context, accountID uuid.UUID) (Usage, error) {
	threadIDs, err := s.store.IDsByAccount(ctx, accountID)
	if err != nil {
		return Usage{}, errors.Join(ErrQueryFailed, err)
	}
	if len(threadIDs) == 0 {
		return Usage{}, nil
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	runs, err := s.store.RunsStartedSince(ctx, threadIDs, monthStart)
	if err != nil {
		return Usage{}, errors.Join(ErrQueryFailed, err)
	}

	var usage Usage
	for _, run := range runs {
		usage.Total += run.Elapsed(now)
		usage.Runs++
		if run.CompletedAt == nil {
			usage.OpenRuns++
		}
	}
	return usage, nil
}

// VerifyAccess reports whether userID may read threadID: threads in public
// projects are open to everyone, otherwise the user must be a member of the
// thread's account.
func (s *Service) VerifyAccess(ctx context.Context, threadID, userID uuid.UUID) error {
	thread, err := s.store.ThreadByID(ctx, threadID)
	if err != nil {
		return err
	}

	if thread.ProjectID != nil {
		public, err := s.store.ProjectIsPublic(ctx, *thread.ProjectID)
		if err != nil {
			return errors.Join(ErrQueryFailed, err)
		}
		if public {
			return nil
		}
	}

	member, err := s.store.IsAccountMember(ctx, thread.AccountID, userID)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	if !member {
		return ErrAccessDenied
	}
	return nil
}

// FormatDuration renders a duration as "Xh Ym" with floor semantics; the
// zero duration is "0h 0m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
