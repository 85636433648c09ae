package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/achievements/internal/achievement"
)

// GetPeriod loads an active period by id.
// Returns ErrNotFound when the period is missing or inactive.
func (s *Store) GetPeriod(ctx context.Context, id int64) (achievement.Period, error) {
	query := s.rebind(`
		SELECT id, start_at, end_at, active
		FROM periods
		WHERE id = ? AND active = TRUE
	`)

	var p achievement.Period
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, scanTime(&p.StartAt), scanTime(&p.EndAt), &p.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return achievement.Period{}, fmt.Errorf("period %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return achievement.Period{}, fmt.Errorf("get period %d: %w", id, err)
	}
	return p, nil
}

// GetWorkout loads a workout by id, active or not.
func (s *Store) GetWorkout(ctx context.Context, id int64) (achievement.Workout, error) {
	query := s.rebind(`
		SELECT id, user_id, period_id, started_at, ended_at,
		       distance, energy_burned, duration, workout_type_id,
		       active, achievement_processed_at, metadata
		FROM workouts
		WHERE id = ?
	`)

	var (
		w         achievement.Workout
		processed time.Time
		hasMarker bool
		metadata  string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&w.ID, &w.UserID, &w.PeriodID, scanTime(&w.StartedAt), scanTime(&w.EndedAt),
		&w.Distance, &w.EnergyBurned, &w.Duration, &w.WorkoutTypeID,
		&w.Active, scanNullTime(&processed, &hasMarker), &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return achievement.Workout{}, fmt.Errorf("workout %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return achievement.Workout{}, fmt.Errorf("get workout %d: %w", id, err)
	}
	if hasMarker {
		w.ProcessedAt = &processed
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &w.Metadata); err != nil {
			return achievement.Workout{}, fmt.Errorf("workout %d metadata: %w", id, err)
		}
	}
	return w, nil
}

const definitionColumns = `
	id, name, active, period_condition, quantity_unit_id, quantity_needed,
	workout_type_condition, COALESCE(frequency, ''), COALESCE(frequency_condition, ''),
	has_progress_tracking, level_id
`

// GetDefinitions loads the active definitions among ids, ordered by id.
// Unknown and inactive ids are skipped.
func (s *Store) GetDefinitions(ctx context.Context, ids []int64) ([]achievement.Definition, error) {
	if len(ids) == 0 {
		return []achievement.Definition{}, nil
	}
	query := s.rebind(fmt.Sprintf(`
		SELECT %s
		FROM achievements
		WHERE active = TRUE AND id IN (%s)
		ORDER BY id ASC
	`, definitionColumns, placeholders(len(ids))))

	return s.queryDefinitions(ctx, query, int64Args(ids)...)
}

// GetDefinition loads one definition regardless of its active flag.
func (s *Store) GetDefinition(ctx context.Context, id int64) (achievement.Definition, error) {
	query := s.rebind(fmt.Sprintf(`
		SELECT %s
		FROM achievements
		WHERE id = ?
	`, definitionColumns))

	defs, err := s.queryDefinitions(ctx, query, id)
	if err != nil {
		return achievement.Definition{}, err
	}
	if len(defs) == 0 {
		return achievement.Definition{}, fmt.Errorf("achievement %d: %w", id, ErrNotFound)
	}
	return defs[0], nil
}

// ListDefinitions loads every definition, active or not, ordered by id.
func (s *Store) ListDefinitions(ctx context.Context) ([]achievement.Definition, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM achievements
		ORDER BY id ASC
	`, definitionColumns)
	return s.queryDefinitions(ctx, query)
}

// PlatinumDefinition loads the active platinum-level definition.
// Returns ErrNotFound when the catalog has none.
func (s *Store) PlatinumDefinition(ctx context.Context) (achievement.Definition, error) {
	query := s.rebind(fmt.Sprintf(`
		SELECT %s
		FROM achievements
		WHERE active = TRUE AND level_id = ?
		ORDER BY id ASC
		LIMIT 1
	`, definitionColumns))

	defs, err := s.queryDefinitions(ctx, query, int64(achievement.LevelPlatinum))
	if err != nil {
		return achievement.Definition{}, err
	}
	if len(defs) == 0 {
		return achievement.Definition{}, fmt.Errorf("platinum achievement: %w", ErrNotFound)
	}
	return defs[0], nil
}

func (s *Store) queryDefinitions(ctx context.Context, query string, args ...any) ([]achievement.Definition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	defs := []achievement.Definition{}
	for rows.Next() {
		var (
			d         achievement.Definition
			period    string
			typeCond  string
			frequency string
			freqCond  string
			unit      int64
			level     int64
		)
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Active, &period, &unit, &d.QuantityNeeded,
			&typeCond, &frequency, &freqCond, &d.HasProgressTracking, &level,
		); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		d.PeriodCondition = achievement.PeriodCondition(period)
		d.WorkoutTypeCondition = achievement.WorkoutTypeCondition(typeCond)
		d.Frequency = achievement.Frequency(frequency)
		d.FrequencyCondition = achievement.FrequencyCondition(freqCond)
		d.QuantityUnit = achievement.QuantityUnit(unit)
		d.Level = achievement.Level(level)
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	rows.Close()

	if len(defs) == 0 {
		return defs, nil
	}
	if err := s.attachWorkoutTypes(ctx, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// attachWorkoutTypes fills WorkoutTypeIDs for defs in ascending type order.
func (s *Store) attachWorkoutTypes(ctx context.Context, defs []achievement.Definition) error {
	ids := make([]int64, len(defs))
	index := make(map[int64]int, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
		index[d.ID] = i
	}
	query := s.rebind(fmt.Sprintf(`
		SELECT achievement_id, workout_type_id
		FROM achievement_workout_types
		WHERE achievement_id IN (%s)
		ORDER BY achievement_id ASC, workout_type_id ASC
	`, placeholders(len(ids))))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("query workout types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var achievementID, typeID int64
		if err := rows.Scan(&achievementID, &typeID); err != nil {
			return fmt.Errorf("scan workout type: %w", err)
		}
		i := index[achievementID]
		defs[i].WorkoutTypeIDs = append(defs[i].WorkoutTypeIDs, typeID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate workout types: %w", err)
	}
	return nil
}

// HeldAchievementIDs returns which of ids the user already holds (active)
// in the period.
func (s *Store) HeldAchievementIDs(ctx context.Context, userID, periodID int64, ids []int64) (map[int64]bool, error) {
	held := make(map[int64]bool)
	if len(ids) == 0 {
		return held, nil
	}
	query := s.rebind(fmt.Sprintf(`
		SELECT achievement_id
		FROM user_achievements
		WHERE user_id = ? AND period_id = ? AND active = TRUE AND achievement_id IN (%s)
	`, placeholders(len(ids))))

	args := append([]any{userID, periodID}, int64Args(ids)...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query held achievements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan held achievement: %w", err)
		}
		held[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate held achievements: %w", err)
	}
	return held, nil
}

// HasAchievement reports whether the user holds an active unlock of
// achievementID in the period.
func (s *Store) HasAchievement(ctx context.Context, userID, periodID, achievementID int64) (bool, error) {
	held, err := s.HeldAchievementIDs(ctx, userID, periodID, []int64{achievementID})
	if err != nil {
		return false, err
	}
	return held[achievementID], nil
}

// HoldsPlatinum reports whether the user holds an active unlock of any
// platinum-level definition in the period.
func (s *Store) HoldsPlatinum(ctx context.Context, userID, periodID int64) (bool, error) {
	query := s.rebind(`
		SELECT COUNT(*)
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ? AND ua.period_id = ? AND ua.active = TRUE AND a.level_id = ?
	`)
	var n int
	if err := s.db.QueryRowContext(ctx, query, userID, periodID, int64(achievement.LevelPlatinum)).Scan(&n); err != nil {
		return false, fmt.Errorf("query platinum held: %w", err)
	}
	return n > 0, nil
}

// ProgressExists reports which of ids already have a progress row for the
// user in the period. It selects Created versus Updated progress events.
func (s *Store) ProgressExists(ctx context.Context, userID, periodID int64, ids []int64) (map[int64]bool, error) {
	exists := make(map[int64]bool)
	if len(ids) == 0 {
		return exists, nil
	}
	query := s.rebind(fmt.Sprintf(`
		SELECT achievement_id
		FROM user_achievement_progress
		WHERE user_id = ? AND period_id = ? AND achievement_id IN (%s)
	`, placeholders(len(ids))))

	args := append([]any{userID, periodID}, int64Args(ids)...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		exists[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return exists, nil
}

// ListUserAchievements returns the user's unlocks in the period ordered by id.
func (s *Store) ListUserAchievements(ctx context.Context, userID, periodID int64) ([]achievement.UserAchievement, error) {
	query := s.rebind(`
		SELECT id, user_id, period_id, achievement_id, achieved_at, active
		FROM user_achievements
		WHERE user_id = ? AND period_id = ?
		ORDER BY id ASC
	`)

	rows, err := s.db.QueryContext(ctx, query, userID, periodID)
	if err != nil {
		return nil, fmt.Errorf("query user achievements: %w", err)
	}
	defer rows.Close()

	result := []achievement.UserAchievement{}
	for rows.Next() {
		var ua achievement.UserAchievement
		if err := rows.Scan(&ua.ID, &ua.UserID, &ua.PeriodID, &ua.AchievementID, scanTime(&ua.AchievedAt), &ua.Active); err != nil {
			return nil, fmt.Errorf("scan user achievement: %w", err)
		}
		result = append(result, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user achievements: %w", err)
	}
	return result, nil
}

// ListProgress returns the user's progress rows in the period ordered by
// achievement id.
func (s *Store) ListProgress(ctx context.Context, userID, periodID int64) ([]achievement.Progress, error) {
	query := s.rebind(`
		SELECT user_id, period_id, achievement_id, quantity, active
		FROM user_achievement_progress
		WHERE user_id = ? AND period_id = ?
		ORDER BY achievement_id ASC
	`)

	rows, err := s.db.QueryContext(ctx, query, userID, periodID)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	result := []achievement.Progress{}
	for rows.Next() {
		var p achievement.Progress
		if err := rows.Scan(&p.UserID, &p.PeriodID, &p.AchievementID, &p.Quantity, &p.Active); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return result, nil
}

// CountCatalog counts the active non-platinum definitions.
func (s *Store) CountCatalog(ctx context.Context) (int, error) {
	query := s.rebind(`
		SELECT COUNT(*)
		FROM achievements
		WHERE active = TRUE AND level_id <> ?
	`)
	var n int
	if err := s.db.QueryRowContext(ctx, query, int64(achievement.LevelPlatinum)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

// CountHeld counts the user's distinct active unlocks of active non-platinum
// definitions in the period.
func (s *Store) CountHeld(ctx context.Context, userID, periodID int64) (int, error) {
	query := s.rebind(`
		SELECT COUNT(DISTINCT ua.achievement_id)
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ? AND ua.period_id = ? AND ua.active = TRUE
		  AND a.active = TRUE AND a.level_id <> ?
	`)
	var n int
	if err := s.db.QueryRowContext(ctx, query, userID, periodID, int64(achievement.LevelPlatinum)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count held: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
