package repository

import (
	"context"
	"fmt"

	"github.com/tessera/tessera/internal/model"
)

// Publisher and endpoint rows are owned by the admin subsystem; the
// gateway only reads them, and only the active ones.

// ListActivePublishers returns every approved, active publisher.
func (r *Repository) ListActivePublishers(ctx context.Context) ([]*model.Publisher, error) {
	query := `
		SELECT id, name, slug, website, wallet_address, is_active, created_at, updated_at
		FROM publishers
		WHERE is_active = true AND status = 'approved'
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list publishers: %w", err)
	}
	defer rows.Close()

	var publishers []*model.Publisher
	for rows.Next() {
		var p model.Publisher
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Slug,
			&p.Website,
			&p.WalletAddress,
			&p.Active,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan publisher: %w", err)
		}
		publishers = append(publishers, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate publishers: %w", err)
	}
	return publishers, nil
}

// ListActiveEndpoints returns every active priced endpoint.
func (r *Repository) ListActiveEndpoints(ctx context.Context) ([]*model.Endpoint, error) {
	query := `
		SELECT id, publisher_id, path, price_usd, is_active, created_at
		FROM endpoints
		WHERE is_active = true
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []*model.Endpoint
	for rows.Next() {
		var e model.Endpoint
		if err := rows.Scan(
			&e.ID,
			&e.PublisherID,
			&e.PathTemplate,
			&e.PriceUSD,
			&e.Active,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		endpoints = append(endpoints, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate endpoints: %w", err)
	}
	return endpoints, nil
}

// CreatePublisher inserts a publisher row. Used by seeding tooling
// and tests; the gateway itself never writes publishers.
func (r *Repository) CreatePublisher(ctx context.Context, p *model.Publisher) error {
	query := `
		INSERT INTO publishers (id, name, slug, website, wallet_address, is_active, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'approved', $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Slug, p.Website, p.WalletAddress, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	return nil
}

// CreateEndpoint inserts a priced endpoint row.
func (r *Repository) CreateEndpoint(ctx context.Context, e *model.Endpoint) error {
	query := `
		INSERT INTO endpoints (id, publisher_id, path, price_usd, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.PublisherID, e.PathTemplate, e.PriceUSD, e.Active, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create endpoint: %w", err)
	}
	return nil
}
