package apikeys

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

// PGStore persists keys in the api_keys table.
type PGStore struct {
	db querier
}

// NewPGStore builds a store over a pgx pool or transaction.
func NewPGStore(db querier) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, key Key) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_keys (id, account_id, secret_hash, description, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.AccountID, key.SecretHash, key.Description, key.Active, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PGStore) ByID(ctx context.Context, keyID uuid.UUID) (*Key, error) {
	var key Key
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, secret_hash, description, is_active, created_at, last_used_at
		FROM api_keys
		WHERE id = $1`,
		keyID,
	).Scan(&key.ID, &key.AccountID, &key.SecretHash, &key.Description, &key.Active, &key.CreatedAt, &key.LastUsed)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("query api key: %w", err)
	}
	return &key, nil
}

func (s *PGStore) ActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]Key, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, secret_hash, description, is_active, created_at, last_used_at
		FROM api_keys
		WHERE account_id = $1 AND is_active
		ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.ID, &key.AccountID, &key.SecretHash, &key.Description, &key.Active, &key.CreatedAt, &key.LastUsed); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

func (s *PGStore) UpdateSecret(ctx context.Context, keyID uuid.UUID, secretHash []byte, rotatedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET secret_hash = $2, created_at = $3, last_used_at = NULL
		WHERE id = $1 AND is_active`,
		keyID, secretHash, rotatedAt,
	)
	if err != nil {
		return fmt.Errorf("rotate api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *PGStore) Deactivate(ctx context.Context, accountID, keyID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE id = $1 AND account_id = $2 AND is_active`,
		keyID, accountID,
	)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *PGStore) TouchLastUsed(ctx context.Context, keyID uuid.UUID, usedAt time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, usedAt)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
