package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/taskmate/pkg/pg"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists registry rows in the user_sandboxes table.
type PGStore struct {
	db querier
}

// NewPGStore builds a store over a pgx pool or transaction.
func NewPGStore(db querier) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) ByUser(ctx context.Context, userID uuid.UUID) (*Record, error) {
	var rec Record
	err := s.db.QueryRow(ctx, `
		SELECT user_id, sandbox_id, sandbox_pass, created_at, last_active_at
		FROM user_sandboxes
		WHERE user_id = $1`,
		userID,
	).Scan(&rec.UserID, &rec.SandboxID, &rec.SandboxPass, &rec.CreatedAt, &rec.LastActiveAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user sandbox: %w", err)
	}
	return &rec, nil
}

func (s *PGStore) Upsert(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_sandboxes (user_id, sandbox_id, sandbox_pass, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET sandbox_id = EXCLUDED.sandbox_id,
		    sandbox_pass = EXCLUDED.sandbox_pass,
		    last_active_at = EXCLUDED.last_active_at`,
		rec.UserID, rec.SandboxID, rec.SandboxPass, rec.CreatedAt, rec.LastActiveAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user sandbox: %w", err)
	}
	return nil
}

func (s *PGStore) Touch(ctx context.Context, userID uuid.UUID, activeAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE user_sandboxes SET last_active_at = $2 WHERE user_id = $1`,
		userID, activeAt,
	)
	if err != nil {
		return fmt.Errorf("touch user sandbox: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM user_sandboxes WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user sandbox: %w", err)
	}
	return nil
}

func (s *PGStore) InactiveSince(ctx context.Context, cutoff time.Time) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, sandbox_id, sandbox_pass, created_at, last_active_at
		FROM user_sandboxes
		WHERE last_active_at < $1`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query inactive sandboxes: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UserID, &rec.SandboxID, &rec.SandboxPass, &rec.CreatedAt, &rec.LastActiveAt); err != nil {
			return nil, fmt.Errorf("scan sandbox row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sandbox rows: %w", err)
	}
	return recs, nil
}
