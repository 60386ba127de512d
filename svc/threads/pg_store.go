package threads

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/taskmate/pkg/pg"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store over the agent backend's Postgres schema.
type PGStore struct {
	db querier
}

// NewPGStore builds a store over a pgx pool or transaction.
func NewPGStore(db querier) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) IDsByAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT thread_id FROM threads WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return ids, nil
}

func (s *PGStore) RunsStartedSince(ctx context.Context, threadIDs []uuid.UUID, since time.Time) ([]AgentRun, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, thread_id, started_at, completed_at
		 FROM agent_runs
		 WHERE thread_id = ANY($1) AND started_at >= $2`,
		threadIDs, since)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var runs []AgentRun
	for rows.Next() {
		var run AgentRun
		if err := rows.Scan(&run.ID, &run.ThreadID, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return runs, nil
}

func (s *PGStore) ThreadByID(ctx context.Context, threadID uuid.UUID) (*Thread, error) {
	var thread Thread
	err := s.db.QueryRow(ctx,
		`SELECT thread_id, account_id, project_id FROM threads WHERE thread_id = $1`,
		threadID).Scan(&thread.ID, &thread.AccountID, &thread.ProjectID)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrThreadNotFound
		}
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return &thread, nil
}

func (s *PGStore) ProjectIsPublic(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var public bool
	err := s.db.QueryRow(ctx,
		`SELECT is_public FROM projects WHERE project_id = $1`, projectID).Scan(&public)
	if err != nil {
		if pg.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Join(ErrQueryFailed, err)
	}
	return public, nil
}

func (s *PGStore) IsAccountMember(ctx context.Context, accountID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM account_members WHERE account_id = $1 AND user_id = $2
		)`, accountID, userID).Scan(&exists)
	if err != nil {
		return false, errors.Join(ErrQueryFailed, err)
	}
	return exists, nil
}
