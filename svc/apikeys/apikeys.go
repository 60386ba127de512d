// Package apikeys manages programmatic access keys for accounts. A key is
// issued once in plaintext as tm_<key id>_<secret>; only a bcrypt hash of
// the secret is stored, and the embedded key id makes authentication a
// single lookup plus one hash comparison.
package apikeys

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/taskmate/pkg/logger"
)

var (
	ErrInvalidKey  = errors.New("apikeys: invalid or inactive api key")
	ErrKeyNotFound = errors.New("apikeys: api key not found")
	ErrStoreFailed = errors.New("apikeys: store operation failed")
)

const (
	keyPrefix    = "tm"
	secretBytes  = 32
	bcryptCost   = bcrypt.DefaultCost
	maxSecretLen = 72 // bcrypt input limit
)

// Key is a stored API key record. SecretHash never leaves the package.
type Key struct {
	ID          uuid.UUID  `json:"key_id"`
	AccountID   uuid.UUID  `json:"-"`
	SecretHash  []byte     `json:"-"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	Active      bool       `json:"-"`
}

// IssuedKey is the create/regenerate result; Plaintext is shown exactly
// once and never recoverable afterwards.
type IssuedKey struct {
	Key
	Plaintext string `json:"api_key"`
}

// Store persists key records.
type Store interface {
	Insert(ctx context.Context, key Key) error
	ByID(ctx context.Context, keyID uuid.UUID) (*Key, error)
	ActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]Key, error)
	UpdateSecret(ctx context.Context, keyID uuid.UUID, secretHash []byte, rotatedAt time.Time) error
	Deactivate(ctx context.Context, accountID, keyID uuid.UUID) error
	TouchLastUsed(ctx context.Context, keyID uuid.UUID, usedAt time.Time) error
}

// Service issues, lists, rotates, revokes and authenticates keys.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
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

// NewService builds a Service on the store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new key for the account and returns it with the plaintext.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, description string) (*IssuedKey, error) {
	keyID := uuid.New()
	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("apikeys: hash secret: %w", err)
	}

	key := Key{
		ID:          keyID,
		AccountID:   accountID,
		SecretHash:  hash,
		Description: description,
		CreatedAt:   s.now().UTC(),
		Active:      true,
	}
	if err := s.store.Insert(ctx, key); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	s.log.InfoContext(ctx, "api key created",
		logger.AccountID(accountID),
		slog.String("key_id", keyID.String()),
		logger.Component("apikeys"),
	)

	return &IssuedKey{Key: key, Plaintext: Encode(keyID, secret)}, nil
}

// List returns the account's active keys, newest first. Hashes are zeroed
// out so callers cannot leak them.
func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]Key, error) {
	keys, err := s.store.ActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	for i := range keys {
		keys[i].SecretHash = nil
	}
	return keys, nil
}

// Regenerate rotates the secret of a key the account owns, keeping the key
// id. Unknown, foreign, or revoked keys report ErrKeyNotFound.
func (s *Service) Regenerate(ctx context.Context, accountID, keyID uuid.UUID) (*IssuedKey, error) {
	key, err := s.store.ByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Join(ErrStoreFailed, err)
	}
	if key.AccountID != accountID || !key.Active {
		return nil, ErrKeyNotFound
	}

	secret, err := newSecret()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("apikeys: hash secret: %w", err)
	}

	rotatedAt := s.now().UTC()
	if err := s.store.UpdateSecret(ctx, keyID, hash, rotatedAt); err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	key.SecretHash = hash
	key.CreatedAt = rotatedAt
	return &IssuedKey{Key: *key, Plaintext: Encode(keyID, secret)}, nil
}

// Revoke soft-deletes a key the account owns.
func (s *Service) Revoke(ctx context.Context, accountID, keyID uuid.UUID) error {
	if err := s.store.Deactivate(ctx, accountID, keyID); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

// Authenticate resolves a presented plaintext key to its account. Unknown
// ids, revoked keys, and wrong secrets all collapse into ErrInvalidKey so
// the caller cannot distinguish them. The last-used timestamp is touched
// best-effort.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (uuid.UUID, error) {
	keyID, secret, err := Decode(plaintext)
	if err != nil {
		return uuid.Nil, ErrInvalidKey
	}

	key, err := s.store.ByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return uuid.Nil, ErrInvalidKey
		}
		return uuid.Nil, errors.Join(ErrStoreFailed, err)
	}
	if !key.Active {
		return uuid.Nil, ErrInvalidKey
	}

	if bcrypt.CompareHashAndPassword(key.SecretHash, []byte(secret)) != nil {
		return uuid.Nil, ErrInvalidKey
	}

	if err := s.store.TouchLastUsed(ctx, keyID, s.now().UTC()); err != nil {
		s.log.WarnContext(ctx, "touch api key last_used",
			logger.Error(err),
			slog.String("key_id", keyID.String()),
			logger.Component("apikeys"),
		)
	}

	return key.AccountID, nil
}

// Encode builds the plaintext form tm_<hex key id>_<secret>.
func Encode(keyID uuid.UUID, secret string) string {
	return keyPrefix + "_" + hex.EncodeToString(keyID[:]) + "_" + secret
}

// Decode splits a plaintext key into its id and secret.
func Decode(plaintext string) (uuid.UUID, string, error) {
	parts := strings.SplitN(plaintext, "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefix || parts[2] == "" || len(parts[2]) > maxSecretLen {
		return uuid.Nil, "", ErrInvalidKey
	}
	raw, err := hex.DecodeString(parts[1])
	if err != nil || len(raw) != 16 {
		return uuid.Nil, "", ErrInvalidKey
	}
	keyID, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, "", ErrInvalidKey
	}
	return keyID, parts[2], nil
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("apikeys: generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
