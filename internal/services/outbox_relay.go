package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/internal/infrastructure/outbox"
)

// Queue is the durable outbox the relay drains.
type Queue interface {
	Batch(limit int) ([]outbox.Notification, error)
	Remove(n outbox.Notification) error
	Requeue(n outbox.Notification) error
	Size() (int, error)
	Cleanup(olderThan time.Time) (int, error)
}

// Publisher delivers a serialized notification.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) (int64, error)
}

// RelayMetrics observes relay throughput.
type RelayMetrics interface {
	Published(n int)
	Dropped(n int)
	OutboxDepth(n int)
}

// RelayConfig controls how frequently the outbox is drained.
type RelayConfig struct {
	Schedule   string
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// OutboxRelay publishes committed ledger events from the outbox.
type OutboxRelay struct {
	queue     Queue
	publisher Publisher
	metrics   RelayMetrics
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       RelayConfig
}

func NewOutboxRelay(queue Queue, publisher Publisher, metrics RelayMetrics, logger *zap.Logger, cfg RelayConfig) (*OutboxRelay, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 5s"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &OutboxRelay{
		queue:     queue,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(),
	}

	if _, err := r.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.Drain(ctx); err != nil {
			r.logger.Error("outbox drain failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	if cfg.Retention > 0 {
		if _, err := r.cron.AddFunc("@hourly", r.cleanup); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Start launches the cron scheduler.
func (r *OutboxRelay) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("outbox relay started", zap.String("schedule", r.cfg.Schedule))
}

// Stop waits for a running drain to finish or ctx to expire.
func (r *OutboxRelay) Stop(ctx context.Context) error {
	if r == nil || r.cron == nil {
		return nil
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.logger.Info("outbox relay stopped")
	return nil
}

// Drain publishes one batch and returns how many notifications went out.
// Failed notifications move to the tail of the queue until MaxRetries is
// reached, after which they are dropped.
func (r *OutboxRelay) Drain(ctx context.Context) (int, error) {
	if r == nil || r.queue == nil || r.publisher == nil {
		return 0, nil
	}

	batch, err := r.queue.Batch(r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, n := range batch {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if err := r.publish(ctx, n); err != nil {
			r.logger.Warn("failed to publish ledger notification",
				zap.String("event_id", n.EventID),
				zap.Int("attempts", n.Attempts+1),
				zap.Error(err))

			if n.Attempts+1 >= r.cfg.MaxRetries {
				r.logger.Error("dropping ledger notification (max retries reached)", zap.String("event_id", n.EventID))
				if err := r.queue.Remove(n); err != nil {
					r.logger.Warn("failed to remove ledger notification", zap.Error(err))
				}
				r.observe(func(m RelayMetrics) { m.Dropped(1) })
				continue
			}
			if err := r.queue.Requeue(n); err != nil {
				r.logger.Error("failed to requeue ledger notification", zap.Error(err))
			}
			continue
		}

		if err := r.queue.Remove(n); err != nil {
			r.logger.Warn("failed to purge published notification", zap.Error(err))
		}
		published++
	}

	r.observe(func(m RelayMetrics) { m.Published(published) })
	if size, err := r.queue.Size(); err == nil {
		r.observe(func(m RelayMetrics) { m.OutboxDepth(size) })
	}
	return published, nil
}

func (r *OutboxRelay) publish(ctx context.Context, n outbox.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = r.publisher.Publish(ctx, payload)
	return err
}

func (r *OutboxRelay) cleanup() {
	dropped, err := r.queue.Cleanup(time.Now().Add(-r.cfg.Retention))
	if err != nil {
		r.logger.Error("outbox cleanup failed", zap.Error(err))
		return
	}
	if dropped > 0 {
		r.logger.Warn("expired ledger notifications dropped", zap.Int("count", dropped))
		r.observe(func(m RelayMetrics) { m.Dropped(dropped) })
	}
}

func (r *OutboxRelay) observe(fn func(RelayMetrics)) {
	if r.metrics != nil {
		fn(r.metrics)
	}
}
