// Package usage provides capture and persistence of per-request usage
// records. Records are published to a Redis stream from the request
// path (fire-and-forget) and drained into Postgres by a worker, so the
// sink's latency and failures never touch the HTTP outcome.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tessera/tessera/internal/metrics"
	"github.com/tessera/tessera/internal/model"
)

const (
	// StreamKey is the Redis stream for usage events.
	StreamKey = "stream:usage_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:usage_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for the Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// EventPayload is the compressed record format for the Redis stream.
type EventPayload struct {
	ID             string  `json:"id"`
	UserID         string  `json:"uid,omitempty"`
	APIKeyID       string  `json:"kid,omitempty"`
	RequestKind    string  `json:"rk"`
	URL            string  `json:"u"`
	EndpointID     string  `json:"eid,omitempty"`
	AmountUSD      float64 `json:"amt"`
	TxHash         string  `json:"tx,omitempty"`
	Status         string  `json:"st"`
	ErrorMessage   string  `json:"err,omitempty"`
	ResponseTimeMS int64   `json:"ms"`
	CreatedAt      int64   `json:"t"` // Unix milliseconds
}

// FromRecord compresses a usage record into its stream payload.
func FromRecord(rec *model.UsageRecord) EventPayload {
	return EventPayload{
		ID:             rec.ID,
		UserID:         rec.UserID,
		APIKeyID:       rec.APIKeyID,
		RequestKind:    string(rec.RequestKind),
		URL:            rec.URL,
		EndpointID:     rec.EndpointID,
		AmountUSD:      rec.AmountUSD,
		TxHash:         rec.TxHash,
		Status:         string(rec.Status),
		ErrorMessage:   rec.ErrorMessage,
		ResponseTimeMS: rec.ResponseTimeMS,
		CreatedAt:      rec.CreatedAt.UnixMilli(),
	}
}

// ToRecord expands a stream payload back into a usage record.
func (p EventPayload) ToRecord() *model.UsageRecord {
	return &model.UsageRecord{
		ID:             p.ID,
		UserID:         p.UserID,
		APIKeyID:       p.APIKeyID,
		RequestKind:    model.RequestKind(p.RequestKind),
		URL:            p.URL,
		EndpointID:     p.EndpointID,
		AmountUSD:      p.AmountUSD,
		TxHash:         p.TxHash,
		Status:         model.UsageStatus(p.Status),
		ErrorMessage:   p.ErrorMessage,
		ResponseTimeMS: p.ResponseTimeMS,
		CreatedAt:      time.UnixMilli(p.CreatedAt).UTC(),
	}
}

// Publisher enqueues usage events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new usage event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "usage.publisher"),
		metrics: recorder,
	}
}

// Publish adds a usage event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event EventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller. Errors are
// logged but never returned: a lost usage row must not mask the
// response already determined for the caller.
func (p *Publisher) PublishAsync(rec *model.UsageRecord) {
	event := FromRecord(rec)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish usage event",
				"record_id", event.ID,
				"url", event.URL,
				"error", err,
			)
			p.metrics.IncUsageEventPublished("dropped")
			return
		}

		p.logger.Debug("usage event published",
			"record_id", event.ID,
			"stream_id", streamID,
		)
		p.metrics.IncUsageEventPublished("success")
	}()
}
