package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/achievements/internal/achievement"
)

// OutboxEvent is a committed event waiting for (or past) publication.
type OutboxEvent struct {
	Seq       int64
	Event     achievement.Event
	RunID     string
	CreatedAt time.Time
}

// PendingEvents returns up to limit unpublished events in commit order.
func (s *Store) PendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.rebind(`
		SELECT seq, payload, run_id, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	result := []OutboxEvent{}
	for rows.Next() {
		var (
			oe      OutboxEvent
			payload string
		)
		if err := rows.Scan(&oe.Seq, &payload, &oe.RunID, scanTime(&oe.CreatedAt)); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		oe.Event, err = achievement.DecodeEvent([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("outbox seq %d: %w", oe.Seq, err)
		}
		result = append(result, oe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return result, nil
}

// MarkPublished stamps the given event ids as published at at.
// Already-published events keep their original timestamp.
func (s *Store) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := s.rebind(fmt.Sprintf(`
		UPDATE outbox_events
		SET published_at = ?
		WHERE published_at IS NULL AND id IN (%s)
	`, placeholders(len(ids))))

	args := make([]any, 0, len(ids)+1)
	args = append(args, s.timeParam(at))
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
