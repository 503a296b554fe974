package usage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tessera/tessera/internal/metrics"
	"github.com/tessera/tessera/internal/model"
	"github.com/tessera/tessera/internal/repository"
)

const (
	// ConsumerGroup is the Redis consumer group for usage workers.
	ConsumerGroup = "usage_workers"

	// BatchSize is the max events read per iteration.
	BatchSize = 100

	// BlockDuration is how long XREADGROUP blocks waiting for events.
	BlockDuration = 5 * time.Second

	// MaxDeliveryAttempts before a message goes to the dead-letter stream.
	MaxDeliveryAttempts = 3

	// ClaimMinIdle is the idle time before pending messages are reclaimed
	// for reprocessing.
	ClaimMinIdle = 30 * time.Second
)

// Worker consumes usage events from the Redis stream and persists
// them to Postgres in batches.
type Worker struct {
	redis     *redis.Client
	repo      *repository.Repository
	logger    *slog.Logger
	metrics   metrics.Recorder
	consumer  string
	claimIdle time.Duration
}

// NewWorker creates a new usage persistence worker.
func NewWorker(client *redis.Client, repo *repository.Repository, logger *slog.Logger, recorder metrics.Recorder, consumer string) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if consumer == "" {
		consumer = "worker-1"
	}
	return &Worker{
		redis:     client,
		repo:      repo,
		logger:    logger.With("component", "usage.worker", "consumer", consumer),
		metrics:   recorder,
		consumer:  consumer,
		claimIdle: ClaimMinIdle,
	}
}

// SetClaimIdle overrides how long a pending message must sit idle
// before it is reclaimed.
func (w *Worker) SetClaimIdle(d time.Duration) {
	if d > 0 {
		w.claimIdle = d
	}
}

// Run processes the stream until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ensureGroup(ctx); err != nil {
		return err
	}

	w.logger.Info("usage worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("usage worker stopping")
			return ctx.Err()
		default:
		}

		if err := w.reclaimPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("failed to reclaim pending messages", "error", err)
		}

		if err := w.processBatch(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("batch processing failed", "error", err)
			// Back off briefly so a persistent failure does not spin.
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}

		w.observeQueueDepth(ctx)
	}
}

// ensureGroup creates the consumer group if it does not exist.
func (w *Worker) ensureGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (w *Worker) processBatch(ctx context.Context) error {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    BatchSize,
		Block:    BlockDuration,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil // No new messages
		}
		return err
	}

	for _, stream := range streams {
		if len(stream.Messages) == 0 {
			continue
		}
		w.handleMessages(ctx, stream.Messages)
	}

	return nil
}

// handleMessages persists a batch of stream messages and acks the
// ones that made it. Malformed payloads go straight to the DLQ.
func (w *Worker) handleMessages(ctx context.Context, messages []redis.XMessage) {
	records := make([]*model.UsageRecord, 0, len(messages))
	ids := make([]string, 0, len(messages))

	for _, msg := range messages {
		rec, err := decodeMessage(msg)
		if err != nil {
			w.logger.Warn("malformed usage event",
				"stream_id", msg.ID,
				"error", err,
			)
			w.deadLetter(ctx, msg, err.Error())
			w.ack(ctx, msg.ID)
			w.metrics.IncUsageEventProcessed("malformed")
			continue
		}
		records = append(records, rec)
		ids = append(ids, msg.ID)
	}

	if len(records) == 0 {
		return
	}

	if err := w.repo.InsertUsageRecords(ctx, records); err != nil {
		w.logger.Error("failed to persist usage batch",
			"count", len(records),
			"error", err,
		)
		// Left unacked. XREADGROUP with ">" never redelivers them, so
		// reclaimPending claims them back once they sit idle; each
		// claim bumps the delivery count until the DLQ cutoff.
		return
	}

	w.ack(ctx, ids...)
	w.metrics.ObserveUsageBatchSize(len(records))
	for range records {
		w.metrics.IncUsageEventProcessed("success")
	}

	w.logger.Debug("usage batch persisted", "count", len(records))
}

// reclaimPending takes back messages that have sat unacked past the
// idle cutoff (failed inserts and dead consumers alike) and runs them
// through the batch path again. Each claim increments the delivery
// count; once a message exhausts MaxDeliveryAttempts it goes to the
// DLQ instead.
func (w *Worker) reclaimPending(ctx context.Context) error {
	pending, err := w.redis.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamKey,
		Group:  ConsumerGroup,
		Start:  "-",
		End:    "+",
		Count:  BatchSize,
		Idle:   w.claimIdle,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var retryIDs, deadIDs []string
	attempts := make(map[string]int64, len(pending))
	for _, p := range pending {
		attempts[p.ID] = p.RetryCount
		if p.RetryCount >= MaxDeliveryAttempts {
			deadIDs = append(deadIDs, p.ID)
		} else {
			retryIDs = append(retryIDs, p.ID)
		}
	}

	if len(retryIDs) > 0 {
		claimed, err := w.claim(ctx, retryIDs)
		if err != nil {
			w.logger.Warn("failed to claim pending messages", "count", len(retryIDs), "error", err)
		} else if len(claimed) > 0 {
			w.logger.Info("retrying pending usage events", "count", len(claimed))
			w.handleMessages(ctx, claimed)
		}
	}

	for _, id := range deadIDs {
		claimed, err := w.claim(ctx, []string{id})
		if err != nil {
			w.logger.Warn("failed to claim pending message", "stream_id", id, "error", err)
			continue
		}
		for _, msg := range claimed {
			w.logger.Warn("dead-lettering usage event after retries",
				"stream_id", msg.ID,
				"attempts", attempts[msg.ID],
			)
			w.deadLetter(ctx, msg, "max delivery attempts exceeded")
			w.ack(ctx, msg.ID)
			w.metrics.IncUsageEventProcessed("dead_letter")
		}
	}

	return nil
}

func (w *Worker) claim(ctx context.Context, ids []string) ([]redis.XMessage, error) {
	claimed, err := w.redis.XClaim(ctx, &redis.XClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumer,
		MinIdle:  w.claimIdle,
		Messages: ids,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return claimed, nil
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string) {
	values := map[string]interface{}{
		"original_id": msg.ID,
		"reason":      reason,
		"failed_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if payload, ok := msg.Values["payload"]; ok {
		values["payload"] = payload
	}

	if err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Err(); err != nil {
		w.logger.Error("failed to dead-letter message", "stream_id", msg.ID, "error", err)
	}
}

func (w *Worker) ack(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		w.logger.Warn("failed to ack messages", "count", len(ids), "error", err)
	}
}

func (w *Worker) observeQueueDepth(ctx context.Context) {
	depth, err := w.redis.XLen(ctx, StreamKey).Result()
	if err != nil {
		return
	}
	w.metrics.SetUsageQueueDepth(depth)
}

func decodeMessage(msg redis.XMessage) (*model.UsageRecord, error) {
	raw, ok := msg.Values["payload"]
	if !ok {
		return nil, errors.New("missing payload field")
	}
	str, ok := raw.(string)
	if !ok {
		return nil, errors.New("payload is not a string")
	}

	var event EventPayload
	if err := json.Unmarshal([]byte(str), &event); err != nil {
		return nil, err
	}

	rec := event.ToRecord()
	if !rec.IsValid() {
		return nil, errors.New("invalid usage record")
	}
	return rec, nil
}
