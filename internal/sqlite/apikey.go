package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/voicematch/internal/repository"
)

// APIKeyRepository implements repository.APIKeyRepository for SQLite
type APIKeyRepository struct {
	db  *DB
	now func() time.Time
}

var _ repository.APIKeyRepository = (*APIKeyRepository)(nil)

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db, now: time.Now}
}

// Add stores the hash of token bound to communityID.
func (r *APIKeyRepository) Add(ctx context.Context, token, communityID, description string) error {
	if token == "" || communityID == "" {
		return repository.ErrInvalidInput
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, community_id, created_at, description) VALUES (?, ?, ?, ?)`,
		HashToken(token), communityID, r.now().UTC(), description,
	)
	if isUniqueViolation(err) {
		return repository.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

// ResolveCommunity returns the community bound to token and stamps its
// last use.
func (r *APIKeyRepository) ResolveCommunity(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", repository.ErrNotFound
	}
	hash := HashToken(token)

	var communityID string
	err := r.db.QueryRowContext(ctx, `SELECT community_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&communityID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, r.now().UTC(), hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return communityID, nil
}

// HashToken returns the hex sha256 of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
