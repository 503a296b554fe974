package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tessera/tessera/internal/metrics"
	"github.com/tessera/tessera/internal/model"
)

// DefaultRefreshInterval is how often the reference snapshot is
// reloaded from the store.
const DefaultRefreshInterval = 30 * time.Second

// Source supplies the reference data a snapshot is built from.
type Source interface {
	ListActivePublishers(ctx context.Context) ([]*model.Publisher, error)
	ListActiveEndpoints(ctx context.Context) ([]*model.Endpoint, error)
}

// Refresher keeps a Resolver's snapshot current. The snapshot refresh
// is the only writer; request handlers only read.
type Refresher struct {
	resolver *Resolver
	source   Source
	logger   *slog.Logger
	metrics  metrics.Recorder
	interval time.Duration
}

// NewRefresher creates a snapshot refresher.
func NewRefresher(r *Resolver, source Source, logger *slog.Logger, recorder metrics.Recorder, interval time.Duration) *Refresher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		resolver: r,
		source:   source,
		logger:   logger.With("component", "resolver.refresher"),
		metrics:  recorder,
		interval: interval,
	}
}

// Refresh loads one snapshot and swaps it in.
func (f *Refresher) Refresh(ctx context.Context) error {
	publishers, err := f.source.ListActivePublishers(ctx)
	if err != nil {
		return fmt.Errorf("list publishers: %w", err)
	}
	endpoints, err := f.source.ListActiveEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}

	byPublisher := make(map[string][]*model.Endpoint, len(publishers))
	for _, ep := range endpoints {
		byPublisher[ep.PublisherID] = append(byPublisher[ep.PublisherID], ep)
	}

	f.resolver.Swap(&Snapshot{Publishers: publishers, Endpoints: byPublisher})
	f.metrics.SetSnapshotPublishers(len(publishers))

	f.logger.Debug("snapshot refreshed",
		"publishers", len(publishers),
		"endpoints", len(endpoints),
	)
	return nil
}

// Run refreshes on a ticker until the context is cancelled. A failed
// refresh keeps the previous snapshot; requests keep being served.
func (f *Refresher) Run(ctx context.Context) error {
	if err := f.Refresh(ctx); err != nil {
		f.logger.Error("initial snapshot load failed", "error", err)
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("refresher stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := f.Refresh(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				f.logger.Warn("snapshot refresh failed", "error", err)
			}
		}
	}
}
