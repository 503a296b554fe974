// Package testutil provides helpers for integration tests that need
// real Postgres or Redis instances, plus test data factories.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tessera/tessera/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 402402

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetPublishersSchema drops and recreates the publishers and
// endpoints tables for tests.
func ResetPublishersSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_publishers")
}

// ResetAPIKeysSchema drops and recreates the api_keys table for tests.
func ResetAPIKeysSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000002_api_keys")
}

// ResetUsageSchema drops and recreates the usage_records table for tests.
func ResetUsageSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000003_usage_records")
}

func resetSchema(ctx context.Context, pool *pgxpool.Pool, migration string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downPath := filepath.Join(root, "migrations", migration+".down.sql")
	upPath := filepath.Join(root, "migrations", migration+".up.sql")

	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}

	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return fmt.Errorf("read up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration: %w", err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// NewTestPublisher creates a publisher with sensible defaults.
func NewTestPublisher(t testing.TB, slug, website string) *model.Publisher {
	t.Helper()
	now := time.Now().UTC()
	return &model.Publisher{
		ID:            ulid.Make().String(),
		Name:          "Test Publisher " + slug,
		Slug:          slug,
		Website:       website,
		WalletAddress: "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTestEndpoint creates a priced endpoint for a publisher.
func NewTestEndpoint(t testing.TB, publisherID, pathTemplate string, priceUSD float64) *model.Endpoint {
	t.Helper()
	return &model.Endpoint{
		ID:           ulid.Make().String(),
		PublisherID:  publisherID,
		PathTemplate: pathTemplate,
		PriceUSD:     priceUSD,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
}

// NewTestUsageRecord creates a completed usage record.
func NewTestUsageRecord(t testing.TB, url string) *model.UsageRecord {
	t.Helper()
	return &model.UsageRecord{
		ID:             ulid.Make().String(),
		UserID:         "user-test",
		RequestKind:    model.RequestFetch,
		URL:            url,
		AmountUSD:      0.10,
		TxHash:         "0xabc123",
		Status:         model.UsageCompleted,
		ResponseTimeMS: 42,
		CreatedAt:      time.Now().UTC(),
	}
}
