package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/achievements/internal/achievement"
)

// UpsertPeriod inserts or replaces a period.
func (s *Store) UpsertPeriod(ctx context.Context, p achievement.Period) error {
	query := s.rebind(`
		INSERT INTO periods (id, start_at, end_at, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET start_at = excluded.start_at, end_at = excluded.end_at, active = excluded.active
	`)
	if _, err := s.db.ExecContext(ctx, query, p.ID, s.timeParam(p.StartAt), s.timeParam(p.EndAt), p.Active); err != nil {
		return fmt.Errorf("upsert period %d: %w", p.ID, err)
	}
	return nil
}

// UpsertDefinition inserts or replaces a definition and its workout types.
func (s *Store) UpsertDefinition(ctx context.Context, d achievement.Definition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert achievement %d: %w", d.ID, err)
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO achievements (
			id, name, active, period_condition, quantity_unit_id, quantity_needed,
			workout_type_condition, frequency, frequency_condition,
			has_progress_tracking, level_id
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			period_condition = excluded.period_condition,
			quantity_unit_id = excluded.quantity_unit_id,
			quantity_needed = excluded.quantity_needed,
			workout_type_condition = excluded.workout_type_condition,
			frequency = excluded.frequency,
			frequency_condition = excluded.frequency_condition,
			has_progress_tracking = excluded.has_progress_tracking,
			level_id = excluded.level_id
	`)
	_, err = tx.ExecContext(ctx, query,
		d.ID, d.Name, d.Active, string(d.PeriodCondition), int64(d.QuantityUnit), d.QuantityNeeded,
		string(d.WorkoutTypeCondition), nullString(string(d.Frequency)), nullString(string(d.FrequencyCondition)),
		d.HasProgressTracking, int64(d.Level),
	)
	if err != nil {
		return fmt.Errorf("upsert achievement %d: %w", d.ID, err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM achievement_workout_types WHERE achievement_id = ?`), d.ID); err != nil {
		return fmt.Errorf("clear workout types for achievement %d: %w", d.ID, err)
	}
	insertType := s.rebind(`
		INSERT INTO achievement_workout_types (achievement_id, workout_type_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`)
	for _, typeID := range d.WorkoutTypeIDs {
		if _, err := tx.ExecContext(ctx, insertType, d.ID, typeID); err != nil {
			return fmt.Errorf("insert workout type %d for achievement %d: %w", typeID, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit achievement %d: %w", d.ID, err)
	}
	return nil
}

// InsertWorkout stores a workout and returns its id. A zero w.ID lets the
// database assign one.
func (s *Store) InsertWorkout(ctx context.Context, w achievement.Workout) (int64, error) {
	metadata := "{}"
	if len(w.Metadata) > 0 {
		data, err := json.Marshal(w.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal workout metadata: %w", err)
		}
		metadata = string(data)
	}
	var processed any
	if w.ProcessedAt != nil {
		processed = s.timeParam(*w.ProcessedAt)
	}

	columns := `user_id, period_id, started_at, ended_at, distance, energy_burned,
		duration, workout_type_id, active, achievement_processed_at, metadata`
	values := "?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"
	args := []any{
		w.UserID, w.PeriodID, s.timeParam(w.StartedAt), s.timeParam(w.EndedAt),
		w.Distance, w.EnergyBurned, w.Duration, w.WorkoutTypeID, w.Active, processed, metadata,
	}
	if w.ID != 0 {
		columns = "id, " + columns
		values = "?, " + values
		args = append([]any{w.ID}, args...)
	}

	query := s.rebind(fmt.Sprintf(`
		INSERT INTO workouts (%s)
		VALUES (%s)
		RETURNING id
	`, columns, values))

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert workout: %w", err)
	}
	return id, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
