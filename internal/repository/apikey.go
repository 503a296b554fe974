package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tessera/tessera/internal/model"
)

// ErrAPIKeyNotFound indicates no key matches the lookup.
var ErrAPIKeyNotFound = errors.New("api key not found")

// GetAPIKeysByPrefix returns active keys sharing a visible prefix.
// Prefixes are short, so collisions are possible; the caller verifies
// the full secret against each candidate's hash.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, name, scopes, is_active,
		       expires_at, last_used_at, created_at
		FROM api_keys
		WHERE key_prefix = $1 AND is_active = true
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		var k model.APIKey
		var scopes []string
		if err := rows.Scan(
			&k.ID,
			&k.UserID,
			&k.KeyHash,
			&k.KeyPrefix,
			&k.Name,
			pq.Array(&scopes),
			&k.Active,
			&k.ExpiresAt,
			&k.LastUsedAt,
			&k.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		k.Scopes = scopes
		keys = append(keys, &k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}
	return keys, nil
}

// CreateAPIKey stores a new key. Used by the bootstrap script; key
// management otherwise lives in the admin subsystem.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, name, scopes, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.UserID,
		key.KeyHash,
		key.KeyPrefix,
		key.Name,
		pq.Array(key.Scopes),
		key.Active,
		key.ExpiresAt,
		key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// UpdateAPIKeyLastUsed stamps a key's last use. Fire-and-forget from
// the auth path.
func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, keyID string) error {
	query := `UPDATE api_keys SET last_used_at = now() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, keyID)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
