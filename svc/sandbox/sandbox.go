// Package sandbox keeps a per-user registry of development sandboxes. Each
// user owns at most one sandbox; the registry maps the user to a fleet
// sandbox id plus an access password, tracks last activity, and sweeps
// sandboxes that sat idle too long.
package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskmate/pkg/logger"
)

var (
	ErrProviderFailed = errors.New("sandbox: provider request failed")
	ErrStoreFailed    = errors.New("sandbox: store operation failed")
	ErrNotFound       = errors.New("sandbox: sandbox not found")
)

// DefaultMaxIdle is how long a sandbox may sit untouched before the
// cleanup sweep reclaims it.
const DefaultMaxIdle = 7 * 24 * time.Hour

// Info describes a sandbox as reported by the fleet manager.
type Info struct {
	ID    string `json:"sandbox_id"`
	State string `json:"state,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Record is a registry row binding a user to their sandbox.
type Record struct {
	UserID       uuid.UUID `json:"user_id"`
	SandboxID    string    `json:"sandbox_id"`
	SandboxPass  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Provider talks to the sandbox fleet manager.
type Provider interface {
	// Create provisions a new sandbox protected by the password.
	Create(ctx context.Context, password string) (Info, error)
	// Ensure reports the sandbox and starts it when stopped.
	Ensure(ctx context.Context, id string) (Info, error)
	// Delete destroys the sandbox.
	Delete(ctx context.Context, id string) error
}

// Store persists registry rows.
type Store interface {
	ByUser(ctx context.Context, userID uuid.UUID) (*Record, error)
	Upsert(ctx context.Context, rec Record) error
	Touch(ctx context.Context, userID uuid.UUID, activeAt time.Time) error
	Delete(ctx context.Context, userID uuid.UUID) error
	InactiveSince(ctx context.Context, cutoff time.Time) ([]Record, error)
}

// Service is the registry over a provider and a store.
type Service struct {
	provider Provider
	store    Store
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock replaces the time source; tests pin it.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds the registry service.
func NewService(provider Provider, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		store:    store,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire returns the user's sandbox, creating one on first use. An
// existing sandbox is started if stopped and its activity stamp bumped.
func (s *Service) Acquire(ctx context.Context, userID uuid.UUID) (*Record, error) {
	rec, err := s.store.ByUser(ctx, userID)
	switch {
	case err == nil:
		if _, err := s.provider.Ensure(ctx, rec.SandboxID); err != nil {
			return nil, errors.Join(ErrProviderFailed, err)
		}
		rec.LastActiveAt = s.now().UTC()
		if err := s.store.Touch(ctx, userID, rec.LastActiveAt); err != nil {
			s.log.WarnContext(ctx, "touch sandbox activity",
				logger.Error(err),
				logger.UserID(userID),
				logger.Component("sandbox"),
			)
		}
		return rec, nil
	case errors.Is(err, ErrNotFound):
		return s.create(ctx, userID)
	default:
		return nil, errors.Join(ErrStoreFailed, err)
	}
}

func (s *Service) create(ctx context.Context, userID uuid.UUID) (*Record, error) {
	password := uuid.NewString()
	info, err := s.provider.Create(ctx, password)
	if err != nil {
		return nil, errors.Join(ErrProviderFailed, err)
	}

	now := s.now().UTC()
	rec := Record{
		UserID:       userID,
		SandboxID:    info.ID,
		SandboxPass:  password,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	s.log.InfoContext(ctx, "sandbox created",
		logger.UserID(userID),
		logger.SandboxID(info.ID),
		logger.Component("sandbox"),
	)
	return &rec, nil
}

// Touch bumps the user's last-active timestamp.
func (s *Service) Touch(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Touch(ctx, userID, s.now().UTC()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

// CleanupInactive reclaims sandboxes idle longer than maxIdle. A failure
// on one sandbox is logged and the sweep moves on; the count of reclaimed
// sandboxes is returned.
func (s *Service) CleanupInactive(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	cutoff := s.now().UTC().Add(-maxIdle)

	stale, err := s.store.InactiveSince(ctx, cutoff)
	if err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}

	reclaimed := 0
	for _, rec := range stale {
		if rec.SandboxID == "" {
			continue
		}
		if err := s.provider.Delete(ctx, rec.SandboxID); err != nil {
			s.log.ErrorContext(ctx, "delete inactive sandbox",
				logger.Error(err),
				logger.UserID(rec.UserID),
				logger.SandboxID(rec.SandboxID),
				logger.Component("sandbox"),
			)
			continue
		}
		if err := s.store.Delete(ctx, rec.UserID); err != nil {
			s.log.ErrorContext(ctx, "remove sandbox record",
				logger.Error(err),
				logger.UserID(rec.UserID),
				logger.Component("sandbox"),
			)
			continue
		}
		reclaimed++
		s.log.InfoContext(ctx, "reclaimed inactive sandbox",
			logger.UserID(rec.UserID),
			logger.SandboxID(rec.SandboxID),
			logger.Component("sandbox"),
		)
	}
	return reclaimed, nil
}
