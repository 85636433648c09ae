package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/achievements/internal/achievement"
)

// Unlock is one user achievement to insert. Events announce it (the
// platinum unlock has two); they receive the new row id as
// UserAchievementID and are dropped when the insert is suppressed because
// the user already holds the achievement.
type Unlock struct {
	UserID        int64
	PeriodID      int64
	AchievementID int64
	AchievedAt    time.Time
	WorkoutID     int64
	Events        []achievement.Event
}

// ProgressUpdate is one progress upsert and the event announcing it.
type ProgressUpdate struct {
	UserID        int64
	PeriodID      int64
	AchievementID int64
	Quantity      int64
	Event         achievement.Event
}

// Commit is everything one processing run writes. All of it lands in a
// single transaction or none of it does.
//
// WorkoutID, when non-zero, is the workout whose processed marker is set.
// A workout that already carries the marker aborts the commit with
// AlreadyProcessed.
type Commit struct {
	WorkoutID   int64
	ProcessedAt time.Time
	RunID       string
	Unlocks     []Unlock
	Progress    []ProgressUpdate
}

// CommitResult reports what a commit stored.
// Events lists the outbox rows written, in write order.
type CommitResult struct {
	AlreadyProcessed bool
	Events           []achievement.Event
}

// CommitOutcome writes c atomically. Event IDs must already be set.
//
// Idempotency rests on three constraints:
//   - the conditional update of workouts.achievement_processed_at
//   - the partial unique index on active user achievements
//   - the unique outbox event id
func (s *Store) CommitOutcome(ctx context.Context, c Commit) (CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	at := c.ProcessedAt
	if at.IsZero() {
		at = time.Now()
	}

	if c.WorkoutID != 0 {
		claimed, err := s.claimWorkout(ctx, tx, c.WorkoutID, at)
		if err != nil {
			return CommitResult{}, err
		}
		if !claimed {
			return CommitResult{AlreadyProcessed: true}, nil
		}
	}

	var events []achievement.Event
	for _, u := range c.Unlocks {
		id, inserted, err := s.insertUnlock(ctx, tx, u)
		if err != nil {
			return CommitResult{}, err
		}
		if !inserted {
			continue
		}
		for _, event := range u.Events {
			event.UserAchievementID = id
			events = append(events, event)
		}
	}

	for _, p := range c.Progress {
		if err := s.upsertProgress(ctx, tx, p, at); err != nil {
			return CommitResult{}, err
		}
		events = append(events, p.Event)
	}

	written := make([]achievement.Event, 0, len(events))
	for _, event := range events {
		ok, err := s.insertOutbox(ctx, tx, event, c.RunID, at)
		if err != nil {
			return CommitResult{}, err
		}
		if ok {
			written = append(written, event)
		}
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("commit: %w", err)
	}
	return CommitResult{Events: written}, nil
}

// claimWorkout sets the processed marker if it is not already set.
func (s *Store) claimWorkout(ctx context.Context, tx *sql.Tx, workoutID int64, at time.Time) (bool, error) {
	query := s.rebind(`
		UPDATE workouts
		SET achievement_processed_at = ?
		WHERE id = ? AND achievement_processed_at IS NULL
	`)
	res, err := tx.ExecContext(ctx, query, s.timeParam(at), workoutID)
	if err != nil {
		return false, fmt.Errorf("mark workout %d processed: %w", workoutID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark workout %d processed: %w", workoutID, err)
	}
	return n == 1, nil
}

// insertUnlock inserts an active user achievement. inserted is false when
// an active row for the same (user, period, achievement) already exists.
func (s *Store) insertUnlock(ctx context.Context, tx *sql.Tx, u Unlock) (int64, bool, error) {
	query := s.rebind(`
		INSERT INTO user_achievements (user_id, period_id, achievement_id, achieved_at, workout_id, active)
		VALUES (?, ?, ?, ?, ?, TRUE)
		ON CONFLICT DO NOTHING
		RETURNING id
	`)
	var workoutID any
	if u.WorkoutID != 0 {
		workoutID = u.WorkoutID
	}

	var id int64
	err := tx.QueryRowContext(ctx, query,
		u.UserID, u.PeriodID, u.AchievementID, s.timeParam(u.AchievedAt), workoutID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert user achievement %d: %w", u.AchievementID, err)
	}
	return id, true, nil
}

func (s *Store) upsertProgress(ctx context.Context, tx *sql.Tx, p ProgressUpdate, at time.Time) error {
	query := s.rebind(`
		INSERT INTO user_achievement_progress (user_id, period_id, achievement_id, quantity, active, updated_at)
		VALUES (?, ?, ?, ?, TRUE, ?)
		ON CONFLICT (user_id, period_id, achievement_id)
		DO UPDATE SET quantity = excluded.quantity, updated_at = excluded.updated_at, active = TRUE
	`)
	if _, err := tx.ExecContext(ctx, query,
		p.UserID, p.PeriodID, p.AchievementID, p.Quantity, s.timeParam(at),
	); err != nil {
		return fmt.Errorf("upsert progress %d: %w", p.AchievementID, err)
	}
	return nil
}

// insertOutbox stores an event for the relay. It returns false when an
// event with the same id was already recorded.
func (s *Store) insertOutbox(ctx context.Context, tx *sql.Tx, event achievement.Event, runID string, at time.Time) (bool, error) {
	if event.ID == "" {
		return false, fmt.Errorf("outbox event %s for achievement %d has no id", event.Type, event.AchievementID)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	query := s.rebind(`
		INSERT INTO outbox_events (id, event_type, payload, run_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	res, err := tx.ExecContext(ctx, query, event.ID, string(event.Type), string(payload), runID, s.timeParam(at))
	if err != nil {
		return false, fmt.Errorf("insert outbox event %s: %w", event.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert outbox event %s: %w", event.ID, err)
	}
	return n == 1, nil
}
