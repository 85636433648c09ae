package processor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/evaluator"
	"github.com/roach88/achievements/internal/lock"
	"github.com/roach88/achievements/internal/metrics"
	"github.com/roach88/achievements/internal/publish"
	"github.com/roach88/achievements/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)

// harness wires a Processor over a SQLite store in a temp directory.
type harness struct {
	store     *store.Store
	backend   *lock.MemoryBackend
	recorder  *publish.Recorder
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	processor *Processor
}

func newHarness(t *testing.T, runs int) *harness {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.UpsertPeriod(context.Background(), achievement.Period{
		ID:      1,
		StartAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2024, 1, 5, 23, 59, 59, 0, time.UTC),
		Active:  true,
	}))

	h := &harness{
		store:    s,
		backend:  lock.NewMemoryBackend(nil),
		recorder: &publish.Recorder{},
		registry: prometheus.NewRegistry(),
	}
	h.metrics = metrics.New(h.registry)
	h.processor = h.build(s, runs)
	return h
}

// build creates a Processor over src sharing the harness lock backend.
func (h *harness) build(src Store, runs int) *Processor {
	ids := make([]string, runs)
	for i := range ids {
		ids[i] = fmt.Sprintf("run-%d", i+1)
	}
	guard := lock.NewGuard(h.backend,
		lock.WithSleep(func(context.Context, time.Duration) error { return nil }),
		lock.WithLogger(discard),
	)
	return New(src, guard, evaluator.New(h.store, h.store.Dialect(), evaluator.WithLogger(discard)),
		WithPublisher(h.recorder),
		WithMetrics(h.metrics),
		WithRunIDs(NewFixedGenerator(ids...)),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(discard),
	)
}

func (h *harness) define(t *testing.T, defs ...achievement.Definition) {
	t.Helper()
	for _, d := range defs {
		require.NoError(t, h.store.UpsertDefinition(context.Background(), d))
	}
}

// workout inserts an active 40 minute workout for user 7 on January day.
func (h *harness) workout(t *testing.T, day int, typeID int64, km float64) achievement.Input {
	t.Helper()
	start := time.Date(2024, 1, day, 9, 0, 0, 0, time.UTC)
	id, err := h.store.InsertWorkout(context.Background(), achievement.Workout{
		UserID:        7,
		PeriodID:      1,
		StartedAt:     start,
		EndedAt:       start.Add(40 * time.Minute),
		Distance:      km,
		Duration:      40,
		WorkoutTypeID: typeID,
		Active:        true,
	})
	require.NoError(t, err)
	return achievement.Input{UserID: 7, PeriodID: 1, WorkoutID: id, WorkoutDate: start}
}

func request(in achievement.Input, ids ...int64) achievement.Input {
	in.AchievementIDs = ids
	return in
}

func kmDefinition(id int64, needed float64, tracking bool) achievement.Definition {
	return achievement.Definition{
		ID:                   id,
		Name:                 fmt.Sprintf("km %d", id),
		Active:               true,
		PeriodCondition:      achievement.SamePeriod,
		QuantityUnit:         achievement.UnitKM,
		QuantityNeeded:       needed,
		WorkoutTypeCondition: achievement.NoTypeFilter,
		HasProgressTracking:  tracking,
		Level:                achievement.LevelBronze,
	}
}

func platinumDefinition(id int64) achievement.Definition {
	return achievement.Definition{
		ID:                   id,
		Name:                 "platinum",
		Active:               true,
		PeriodCondition:      achievement.SamePeriod,
		QuantityUnit:         achievement.UnitExercise,
		QuantityNeeded:       1,
		WorkoutTypeCondition: achievement.NoTypeFilter,
		Level:                achievement.LevelPlatinum,
	}
}

func eventTypes(events []achievement.Event) []achievement.EventType {
	out := make([]achievement.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
