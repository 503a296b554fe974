package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tessera/tessera/internal/model"
)

// ErrEmptyBatch indicates an insert was attempted with no records.
var ErrEmptyBatch = errors.New("empty usage batch")

// InsertUsageRecords appends a batch of usage rows. Rows are
// append-only: conflicts on ID are skipped so a redelivered stream
// message never duplicates or mutates a row.
func (r *Repository) InsertUsageRecords(ctx context.Context, records []*model.UsageRecord) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}

	query := `
		INSERT INTO usage_records
			(id, user_id, api_key_id, request_type, url, endpoint_id,
			 amount_usd, tx_hash, status, error_message, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.ID,
			nullable(rec.UserID),
			nullable(rec.APIKeyID),
			string(rec.RequestKind),
			rec.URL,
			nullable(rec.EndpointID),
			rec.AmountUSD,
			nullable(rec.TxHash),
			string(rec.Status),
			nullable(rec.ErrorMessage),
			rec.ResponseTimeMS,
			rec.CreatedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}
	return nil
}

// nullable maps an empty string to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
