package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/achievements/internal/achievement"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// seedPeriod inserts the active 2021 period with id 1.
func seedPeriod(t *testing.T, s *Store) achievement.Period {
	t.Helper()
	p := achievement.Period{
		ID:      1,
		StartAt: date("2021-01-01T00:00:00Z"),
		EndAt:   date("2021-12-31T23:59:59Z"),
		Active:  true,
	}
	if err := s.UpsertPeriod(context.Background(), p); err != nil {
		t.Fatalf("UpsertPeriod() failed: %v", err)
	}
	return p
}

func seedDefinition(t *testing.T, s *Store, d achievement.Definition) {
	t.Helper()
	if err := s.UpsertDefinition(context.Background(), d); err != nil {
		t.Fatalf("UpsertDefinition(%d) failed: %v", d.ID, err)
	}
}

// seedWorkout inserts an active workout for user 7 in period 1.
func seedWorkout(t *testing.T, s *Store, start string, minutes int, distanceKM float64, typeID int64) int64 {
	t.Helper()
	started := date(start)
	id, err := s.InsertWorkout(context.Background(), achievement.Workout{
		UserID:        7,
		PeriodID:      1,
		StartedAt:     started,
		EndedAt:       started.Add(time.Duration(minutes) * time.Minute),
		Distance:      distanceKM,
		Duration:      float64(minutes),
		WorkoutTypeID: typeID,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("InsertWorkout() failed: %v", err)
	}
	return id
}

func testDefinition(id int64, unit achievement.QuantityUnit, needed float64) achievement.Definition {
	return achievement.Definition{
		ID:                   id,
		Name:                 "test",
		Active:               true,
		PeriodCondition:      achievement.SamePeriod,
		QuantityUnit:         unit,
		QuantityNeeded:       needed,
		WorkoutTypeCondition: achievement.NoTypeFilter,
		Level:                achievement.LevelBronze,
	}
}

func mustEventID(t *testing.T, e achievement.Event) achievement.Event {
	t.Helper()
	e, err := e.WithID()
	if err != nil {
		t.Fatalf("WithID() failed: %v", err)
	}
	return e
}
