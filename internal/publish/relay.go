package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/store"
)

// Outbox is the store surface the relay needs. Implemented by *store.Store.
type Outbox interface {
	PendingEvents(ctx context.Context, limit int) ([]store.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Relay drains pending outbox rows into a Publisher.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// NewRelay creates a relay. batchSize <= 0 means 100.
func NewRelay(outbox Outbox, publisher Publisher, batchSize int, logger *slog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{outbox: outbox, publisher: publisher, batchSize: batchSize, now: time.Now, logger: logger}
}

// Flush publishes pending events until none remain and returns how many
// were published. A publish failure stops the flush with the failed batch
// still pending.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		pending, err := r.outbox.PendingEvents(ctx, r.batchSize)
		if err != nil {
			return total, fmt.Errorf("relay: %w", err)
		}
		if len(pending) == 0 {
			return total, nil
		}

		events := make([]achievement.Event, len(pending))
		ids := make([]string, len(pending))
		for i, p := range pending {
			events[i] = p.Event
			ids[i] = p.Event.ID
		}
		if err := r.publisher.Publish(ctx, events); err != nil {
			return total, fmt.Errorf("relay: publish %d events: %w", len(events), err)
		}
		if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
			return total, fmt.Errorf("relay: %w", err)
		}
		total += len(events)
		r.logger.Debug("relay batch published", "events", len(events))

		if len(pending) < r.batchSize {
			return total, nil
		}
	}
}

// Run flushes every interval until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := r.Flush(ctx); err != nil {
			r.logger.Error("relay flush failed", "error", err)
		} else if n > 0 {
			r.logger.Info("relay flushed", "events", n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
