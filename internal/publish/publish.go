package publish

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/achievements/internal/achievement"
)

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, events []achievement.Event) error
}

// Log writes each event as a structured log line.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log publisher. nil logger means slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, events []achievement.Event) error {
	for _, e := range events {
		attrs := []any{
			"event_id", e.ID,
			"achievement_id", e.AchievementID,
			"user_id", e.UserID,
			"period_id", e.PeriodID,
		}
		if e.Quantity != nil {
			attrs = append(attrs, "quantity", *e.Quantity)
		}
		if e.AchievedAt != nil {
			attrs = append(attrs, "achieved_at", e.AchievedAt.UTC())
		}
		l.logger.InfoContext(ctx, string(e.Type), attrs...)
	}
	return nil
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, events []achievement.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory, in order.
type Recorder struct {
	mu     sync.Mutex
	events []achievement.Event
}

func (r *Recorder) Publish(_ context.Context, events []achievement.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []achievement.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]achievement.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
