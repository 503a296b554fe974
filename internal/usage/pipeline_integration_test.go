package usage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tessera/tessera/internal/cache"
	"github.com/tessera/tessera/internal/metrics"
	"github.com/tessera/tessera/internal/repository"
	"github.com/tessera/tessera/internal/testutil"
)

// End-to-end pipeline test: events published to the stream must land
// in Postgres via the worker. Requires DATABASE_URL and REDIS_URL.
func TestPipelinePublishAndPersist(t *testing.T) {
	ctx, repo, client := newStreamTestEnv(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.NewInMemory()

	publisher := NewPublisher(client, logger, recorder)
	worker := NewWorker(client, repo, logger, recorder, "test-consumer")

	workerCtx, cancel := context.WithCancel(ctx)
	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run(workerCtx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-workerErr:
		case <-time.After(10 * time.Second):
		}
	})

	records := map[string]bool{}
	for i := 0; i < 3; i++ {
		rec := testutil.NewTestUsageRecord(t, "https://news.example/news/articles/42")
		records[rec.ID] = true
		if _, err := publisher.Publish(ctx, FromRecord(rec)); err != nil {
			t.Fatalf("publish event %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		err := repo.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM usage_records").Scan(&count)
		if err != nil {
			t.Fatalf("count rows: %v", err)
		}
		if count == int64(len(records)) {
			for id := range records {
				var status string
				if err := repo.Pool().QueryRow(ctx, "SELECT status FROM usage_records WHERE id = $1", id).Scan(&status); err != nil {
					t.Fatalf("row %s missing: %v", id, err)
				}
				if status != "completed" {
					t.Errorf("row %s status = %q", id, status)
				}
			}
			return
		}
		time.Sleep(200 * time.Millisecond)
	}

	t.Fatal("usage events were not persisted before the deadline")
}

// newStreamTestEnv connects to Postgres and Redis, resets the usage
// schema, and flushes the stream state. Requires DATABASE_URL and
// REDIS_URL.
func newStreamTestEnv(t *testing.T) (context.Context, *repository.Repository, *redis.Client) {
	t.Helper()

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetUsageSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset usage schema: %v", err)
	}

	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() {
		_ = cacheClient.Close()
	})

	if err := testutil.FlushRedis(ctx, cacheClient.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	return ctx, repo, cacheClient.Client()
}

// readWithoutAck delivers pending stream entries to consumer and
// leaves them unacked, the state a failed batch insert leaves behind.
func readWithoutAck(ctx context.Context, t *testing.T, client *redis.Client, consumer string) {
	t.Helper()
	_, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    BatchSize,
		Block:    time.Second,
	}).Result()
	if err != nil {
		t.Fatalf("read without ack: %v", err)
	}
}

// A batch that was delivered but never acked (the insert failed) must
// be claimed back and persisted on a later pass, not stranded in the
// pending list.
func TestWorkerReclaimsUnackedBatch(t *testing.T) {
	ctx, repo, client := newStreamTestEnv(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := NewWorker(client, repo, logger, metrics.NewInMemory(), "test-consumer")
	worker.SetClaimIdle(10 * time.Millisecond)
	if err := worker.ensureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	pub := NewPublisher(client, logger, nil)
	rec := testutil.NewTestUsageRecord(t, "https://news.example/news/articles/42")
	if _, err := pub.Publish(ctx, FromRecord(rec)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	readWithoutAck(ctx, t, client, "test-consumer")
	time.Sleep(50 * time.Millisecond)

	if err := worker.reclaimPending(ctx); err != nil {
		t.Fatalf("reclaim pending: %v", err)
	}

	var count int64
	if err := repo.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM usage_records WHERE id = $1", rec.ID).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("persisted rows = %d, want 1", count)
	}

	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("pending entries = %d, want 0 after reclaim", pending.Count)
	}
}

// A message that keeps failing goes to the dead-letter stream once its
// delivery count reaches the cap, and is acked off the pending list.
func TestWorkerDeadLettersExhaustedMessage(t *testing.T) {
	ctx, repo, client := newStreamTestEnv(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := NewWorker(client, repo, logger, metrics.NewInMemory(), "test-consumer")
	worker.SetClaimIdle(10 * time.Millisecond)
	if err := worker.ensureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	pub := NewPublisher(client, logger, nil)
	rec := testutil.NewTestUsageRecord(t, "https://news.example/news/articles/42")
	if _, err := pub.Publish(ctx, FromRecord(rec)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// First delivery, then claim it back until the delivery count hits
	// MaxDeliveryAttempts. Each XCLAIM counts as a delivery.
	readWithoutAck(ctx, t, client, "test-consumer")
	pending, err := client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamKey,
		Group:  ConsumerGroup,
		Start:  "-",
		End:    "+",
		Count:  1,
	}).Result()
	if err != nil || len(pending) != 1 {
		t.Fatalf("xpending ext: %v (%d entries)", err, len(pending))
	}
	for i := 0; i < MaxDeliveryAttempts-1; i++ {
		if _, err := client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   StreamKey,
			Group:    ConsumerGroup,
			Consumer: "test-consumer",
			MinIdle:  0,
			Messages: []string{pending[0].ID},
		}).Result(); err != nil {
			t.Fatalf("xclaim %d: %v", i, err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	if err := worker.reclaimPending(ctx); err != nil {
		t.Fatalf("reclaim pending: %v", err)
	}

	dlqLen, err := client.XLen(ctx, DeadLetterStreamKey).Result()
	if err != nil {
		t.Fatalf("dlq len: %v", err)
	}
	if dlqLen != 1 {
		t.Errorf("dead-letter entries = %d, want 1", dlqLen)
	}

	after, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if after.Count != 0 {
		t.Errorf("pending entries = %d, want 0 after dead-letter", after.Count)
	}

	var count int64
	if err := repo.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM usage_records").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Errorf("persisted rows = %d, want 0 for a dead-lettered event", count)
	}
}
