package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roach88/achievements/internal/achievement"
)

func TestGetPeriod(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := seedPeriod(t, s)

	got, err := s.GetPeriod(ctx, 1)
	if err != nil {
		t.Fatalf("GetPeriod() failed: %v", err)
	}
	if !got.StartAt.Equal(want.StartAt) || !got.EndAt.Equal(want.EndAt) {
		t.Errorf("GetPeriod() bounds = %v..%v, want %v..%v", got.StartAt, got.EndAt, want.StartAt, want.EndAt)
	}
	if !got.Active {
		t.Error("GetPeriod() returned inactive period")
	}
}

func TestGetPeriod_InactiveIsNotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := seedPeriod(t, s)
	p.Active = false
	if err := s.UpsertPeriod(ctx, p); err != nil {
		t.Fatalf("UpsertPeriod() failed: %v", err)
	}

	_, err := s.GetPeriod(ctx, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPeriod() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPeriod(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPeriod(99) error = %v, want ErrNotFound", err)
	}
}

func TestGetWorkout(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedPeriod(t, s)

	started := date("2021-03-04T10:00:00Z")
	id, err := s.InsertWorkout(ctx, achievement.Workout{
		ID:            42,
		UserID:        7,
		PeriodID:      1,
		StartedAt:     started,
		EndedAt:       started.Add(30 * time.Minute),
		Distance:      5.5,
		EnergyBurned:  320,
		Duration:      30,
		WorkoutTypeID: 3,
		Active:        true,
		Metadata:      map[string]any{"device": "watch"},
	})
	if err != nil {
		t.Fatalf("InsertWorkout() failed: %v", err)
	}
	if id != 42 {
		t.Fatalf("InsertWorkout() id = %d, want 42", id)
	}

	w, err := s.GetWorkout(ctx, 42)
	if err != nil {
		t.Fatalf("GetWorkout() failed: %v", err)
	}
	if w.UserID != 7 || w.Distance != 5.5 || w.WorkoutTypeID != 3 {
		t.Errorf("GetWorkout() = %+v", w)
	}
	if !w.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", w.StartedAt, started)
	}
	if w.ProcessedAt != nil {
		t.Errorf("ProcessedAt = %v, want nil", w.ProcessedAt)
	}
	if w.Metadata["device"] != "watch" {
		t.Errorf("Metadata = %v", w.Metadata)
	}

	if _, err := s.GetWorkout(ctx, 43); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetWorkout(43) error = %v, want ErrNotFound", err)
	}
}

func TestGetDefinitions_ActiveOnlyOrderedWithTypes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d3 := testDefinition(3, achievement.UnitKM, 10)
	d3.WorkoutTypeCondition = achievement.AnyOf
	d3.WorkoutTypeIDs = []int64{9, 2}
	d3.Frequency = achievement.FrequencyDay
	d3.FrequencyCondition = achievement.Every
	d1 := testDefinition(1, achievement.UnitExercise, 1)
	d2 := testDefinition(2, achievement.UnitMinute, 60)
	d2.Active = false

	seedDefinition(t, s, d3)
	seedDefinition(t, s, d1)
	seedDefinition(t, s, d2)

	defs, err := s.GetDefinitions(ctx, []int64{3, 2, 1, 99})
	if err != nil {
		t.Fatalf("GetDefinitions() failed: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("GetDefinitions() returned %d definitions, want 2", len(defs))
	}
	if defs[0].ID != 1 || defs[1].ID != 3 {
		t.Errorf("GetDefinitions() ids = %d,%d, want 1,3", defs[0].ID, defs[1].ID)
	}
	got := defs[1]
	if got.QuantityUnit != achievement.UnitKM || got.QuantityNeeded != 10 {
		t.Errorf("unit/needed = %v/%v", got.QuantityUnit, got.QuantityNeeded)
	}
	if got.Frequency != achievement.FrequencyDay || got.FrequencyCondition != achievement.Every {
		t.Errorf("frequency = %q/%q", got.Frequency, got.FrequencyCondition)
	}
	if len(got.WorkoutTypeIDs) != 2 || got.WorkoutTypeIDs[0] != 2 || got.WorkoutTypeIDs[1] != 9 {
		t.Errorf("WorkoutTypeIDs = %v, want [2 9]", got.WorkoutTypeIDs)
	}
	if defs[0].Frequency != achievement.NoFrequency {
		t.Errorf("frequency = %q, want empty", defs[0].Frequency)
	}

	empty, err := s.GetDefinitions(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("GetDefinitions(nil) = %v, %v", empty, err)
	}
}

func TestUpsertDefinition_ReplacesWorkoutTypes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d := testDefinition(5, achievement.UnitKM, 10)
	d.WorkoutTypeCondition = achievement.AllOf
	d.WorkoutTypeIDs = []int64{1, 2, 3}
	seedDefinition(t, s, d)

	d.WorkoutTypeIDs = []int64{4}
	d.QuantityNeeded = 20
	seedDefinition(t, s, d)

	got, err := s.GetDefinition(ctx, 5)
	if err != nil {
		t.Fatalf("GetDefinition() failed: %v", err)
	}
	if got.QuantityNeeded != 20 {
		t.Errorf("QuantityNeeded = %v, want 20", got.QuantityNeeded)
	}
	if len(got.WorkoutTypeIDs) != 1 || got.WorkoutTypeIDs[0] != 4 {
		t.Errorf("WorkoutTypeIDs = %v, want [4]", got.WorkoutTypeIDs)
	}
}

func TestPlatinumAndCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedPeriod(t, s)

	if _, err := s.PlatinumDefinition(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("PlatinumDefinition() error = %v, want ErrNotFound", err)
	}

	seedDefinition(t, s, testDefinition(1, achievement.UnitKM, 1))
	seedDefinition(t, s, testDefinition(2, achievement.UnitKM, 2))
	inactive := testDefinition(3, achievement.UnitKM, 3)
	inactive.Active = false
	seedDefinition(t, s, inactive)
	platinum := testDefinition(4, achievement.UnitExercise, 0)
	platinum.Level = achievement.LevelPlatinum
	seedDefinition(t, s, platinum)

	got, err := s.PlatinumDefinition(ctx)
	if err != nil {
		t.Fatalf("PlatinumDefinition() failed: %v", err)
	}
	if got.ID != 4 {
		t.Errorf("PlatinumDefinition() id = %d, want 4", got.ID)
	}

	total, err := s.CountCatalog(ctx)
	if err != nil {
		t.Fatalf("CountCatalog() failed: %v", err)
	}
	if total != 2 {
		t.Errorf("CountCatalog() = %d, want 2", total)
	}

	_, err = s.CommitOutcome(ctx, Commit{
		RunID: "run-1",
		Unlocks: []Unlock{
			{UserID: 7, PeriodID: 1, AchievementID: 1, AchievedAt: date("2021-03-01T00:00:00Z"),
				Events: []achievement.Event{mustEventID(t, achievement.NewCreatedEvent(testDefinition(1, achievement.UnitKM, 1), 7, 1, 0, date("2021-03-01T00:00:00Z")))}},
			{UserID: 7, PeriodID: 1, AchievementID: 3, AchievedAt: date("2021-03-01T00:00:00Z"),
				Events: []achievement.Event{mustEventID(t, achievement.NewCreatedEvent(inactive, 7, 1, 0, date("2021-03-01T00:00:00Z")))}},
		},
	})
	if err != nil {
		t.Fatalf("CommitOutcome() failed: %v", err)
	}

	held, err := s.CountHeld(ctx, 7, 1)
	if err != nil {
		t.Fatalf("CountHeld() failed: %v", err)
	}
	if held != 1 {
		t.Errorf("CountHeld() = %d, want 1 (inactive definitions excluded)", held)
	}

	has, err := s.HasAchievement(ctx, 7, 1, 1)
	if err != nil || !has {
		t.Errorf("HasAchievement(1) = %v, %v, want true", has, err)
	}
	has, err = s.HasAchievement(ctx, 7, 1, 2)
	if err != nil || has {
		t.Errorf("HasAchievement(2) = %v, %v, want false", has, err)
	}

	platinum, err := s.HoldsPlatinum(ctx, 7, 1)
	if err != nil || platinum {
		t.Errorf("HoldsPlatinum() = %v, %v, want false", platinum, err)
	}
}
