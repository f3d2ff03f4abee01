package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
	"github.com/couchcryptid/snow-removal-info-service/internal/observability"
)

// Outbox yields reports awaiting publication and acknowledges them once
// they have been written.
type Outbox interface {
	PendingBatch(ctx context.Context, n int) ([]domain.SnowReport, error)
	MarkPublished(ctx context.Context, ids []int64) error
	PendingCount() (int, error)
}

// BatchLoader writes multiple reports to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, reports []domain.SnowReport) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Relay moves stored snow reports to Kafka in batches.
type Relay struct {
	outbox       Outbox
	loader       BatchLoader
	logger       *slog.Logger
	metrics      *observability.Metrics
	batchSize    int
	pollInterval time.Duration

	wake    chan struct{}
	started atomic.Bool
	healthy atomic.Bool
}

// New creates a Relay. pollInterval is how long an idle relay waits before
// looking at the outbox again when nothing calls Notify.
func New(o Outbox, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, pollInterval time.Duration) *Relay {
	return &Relay{
		outbox:       o,
		loader:       l,
		logger:       logger,
		metrics:      metrics,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
	}
}

// Notify wakes an idle relay. It never blocks.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// CheckReadiness returns nil once a cycle has completed and the most recent
// publish attempt did not fail.
func (r *Relay) CheckReadiness(_ context.Context) error {
	if !r.started.Load() {
		return errors.New("relay has not completed a cycle yet")
	}
	if !r.healthy.Load() {
		return errors.New("relay cannot publish to kafka")
	}
	return nil
}

// Run executes the relay loop until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("relay started", "batch_size", r.batchSize, "poll_interval", r.pollInterval)
	r.metrics.RelayRunning.Set(1)
	defer r.metrics.RelayRunning.Set(0)

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !r.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one read-publish-acknowledge cycle. Returns false if the relay should stop.
func (r *Relay) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	batch, err := r.outbox.PendingBatch(ctx, r.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		r.logger.Error("read outbox failed", "error", err)
		return r.backoffOrStop(ctx, backoff)
	}

	if len(batch) == 0 {
		r.started.Store(true)
		r.healthy.Store(true)
		r.metrics.OutboxPending.Set(0)
		return r.idle(ctx)
	}

	r.metrics.RelayBatchSize.Observe(float64(len(batch)))

	if err := r.loader.LoadBatch(ctx, batch); err != nil {
		if ctx.Err() != nil {
			return false
		}
		r.logger.Error("publish batch failed", "error", err, "batch_size", len(batch))
		r.metrics.PublishErrors.Inc()
		r.started.Store(true)
		r.healthy.Store(false)
		r.observeBacklog()
		return r.backoffOrStop(ctx, backoff)
	}

	r.metrics.ReportsPublished.Add(float64(len(batch)))
	r.started.Store(true)
	r.healthy.Store(true)
	*backoff = initialBackoff

	ids := make([]int64, len(batch))
	for i := range batch {
		ids[i] = batch[i].ID
	}
	if err := r.outbox.MarkPublished(ctx, ids); err != nil {
		// The reports will be published again on the next cycle.
		r.logger.Warn("acknowledge batch failed", "error", err, "batch_size", len(ids))
		return r.backoffOrStop(ctx, backoff)
	}

	r.metrics.RelayBatchDuration.Observe(time.Since(start).Seconds())
	r.observeBacklog()
	r.logger.Debug("batch relayed", "count", len(ids), "first_id", ids[0], "last_id", ids[len(ids)-1])
	return true
}

// idle waits for Notify or the poll interval. Returns false if the context ended.
func (r *Relay) idle(ctx context.Context) bool {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-r.wake:
		return true
	case <-timer.C:
		return true
	}
}

// observeBacklog reports how many reports are still waiting to be published.
func (r *Relay) observeBacklog() {
	n, err := r.outbox.PendingCount()
	if err != nil {
		r.logger.Warn("count outbox failed", "error", err)
		return
	}
	r.metrics.OutboxPending.Set(float64(n))
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the relay should stop.
func (r *Relay) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}
