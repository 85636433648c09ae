package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/catalog"
	"github.com/roach88/achievements/internal/evaluator"
	"github.com/roach88/achievements/internal/lock"
	"github.com/roach88/achievements/internal/processor"
	"github.com/roach88/achievements/internal/publish"
	"github.com/roach88/achievements/internal/store"
	"github.com/roach88/achievements/internal/testutil"
)

// holderOwner is the lock owner used for hold_lock steps.
const holderOwner = "scenario-holder"

// Harness runs one scenario against a real Processor over a fresh
// in-memory store. Wall time and run ids are deterministic.
type Harness struct {
	store     *store.Store
	backend   *lock.MemoryBackend
	guard     *lock.Guard
	clock     *testutil.Clock
	recorder  *publish.Recorder
	processor *processor.Processor
	logger    *slog.Logger

	workouts map[int64]WorkoutSpec
	stored   map[int64]bool
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes processor logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Load, validate and seed the catalog
//  2. Store every workout that is not deferred
//  3. Process each flow step and check its expect clause
//  4. Evaluate assertions against the trace and the final state
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	nowText := scenario.Now
	if nowText == "" {
		nowText = DefaultNow
	}
	now, err := time.Parse(time.RFC3339, nowText)
	if err != nil {
		return nil, fmt.Errorf("parse now: %w", err)
	}

	cat, err := catalog.Load(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if errs := catalog.Validate(cat); len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}

	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := catalog.Seed(ctx, st, cat); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	h := newHarness(st, testutil.NewClock(now), o.logger)
	for _, w := range scenario.Workouts {
		h.workouts[w.ID] = w
		if w.Deferred {
			continue
		}
		if err := h.storeWorkout(ctx, w); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(st *store.Store, clock *testutil.Clock, logger *slog.Logger) *Harness {
	h := &Harness{
		store:    st,
		backend:  lock.NewMemoryBackend(clock.Now),
		clock:    clock,
		recorder: &publish.Recorder{},
		logger:   logger,
		workouts: make(map[int64]WorkoutSpec),
		stored:   make(map[int64]bool),
	}
	h.guard = lock.NewGuard(h.backend,
		lock.WithSleep(func(context.Context, time.Duration) error { return nil }),
		lock.WithLogger(logger),
	)
	h.processor = processor.New(st, h.guard, evaluator.New(st, st.Dialect(), evaluator.WithLogger(logger)),
		processor.WithPublisher(h.recorder),
		processor.WithRunIDs(testutil.NewSequenceGenerator("run")),
		processor.WithClock(clock.Now),
		processor.WithLogger(logger),
	)
	return h
}

func (h *Harness) storeWorkout(ctx context.Context, w WorkoutSpec) error {
	start, err := time.Parse(time.RFC3339, w.Start)
	if err != nil {
		return fmt.Errorf("workout %d: %w", w.ID, err)
	}
	start = start.UTC()
	_, err = h.store.InsertWorkout(ctx, achievement.Workout{
		ID:            w.ID,
		UserID:        w.User,
		PeriodID:      w.Period,
		StartedAt:     start,
		EndedAt:       start.Add(time.Duration(w.Minutes * float64(time.Minute))),
		Distance:      w.Km,
		EnergyBurned:  w.Calories,
		Duration:      w.Minutes,
		WorkoutTypeID: w.Type,
		Active:        !w.Inactive,
	})
	if err != nil {
		return fmt.Errorf("store workout %d: %w", w.ID, err)
	}
	h.stored[w.ID] = true
	return nil
}

// input builds the event for step, storing a deferred workout first.
func (h *Harness) input(ctx context.Context, step FlowStep) (achievement.Input, error) {
	in := achievement.Input{
		AchievementIDs: step.Achievements,
		UserID:         step.User,
		PeriodID:       step.Period,
		WorkoutID:      step.Workout,
	}
	if w, ok := h.workouts[step.Workout]; ok {
		if !h.stored[w.ID] {
			if err := h.storeWorkout(ctx, w); err != nil {
				return achievement.Input{}, err
			}
		}
		if in.UserID == 0 {
			in.UserID = w.User
		}
		if in.PeriodID == 0 {
			in.PeriodID = w.Period
		}
		date, err := time.Parse(time.RFC3339, w.Start)
		if err != nil {
			return achievement.Input{}, err
		}
		in.WorkoutDate = date.UTC()
	}
	if step.Date != "" {
		date, err := time.Parse(time.RFC3339, step.Date)
		if err != nil {
			return achievement.Input{}, err
		}
		in.WorkoutDate = date.UTC()
	}
	return in, nil
}

// executeFlow processes each step in order and checks its expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		in, err := h.input(ctx, step)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}

		if step.HoldLock {
			ok, err := h.backend.TryAcquire(ctx, in.LockKey(), holderOwner, h.guard.TTL())
			if err != nil {
				return fmt.Errorf("flow[%d]: hold lock: %w", i, err)
			}
			if !ok {
				return fmt.Errorf("flow[%d]: lock for user %d already held", i, in.UserID)
			}
		}

		trace, err := h.process(ctx, i+1, in)

		if step.HoldLock {
			if relErr := h.backend.Release(ctx, in.LockKey(), holderOwner); relErr != nil {
				return fmt.Errorf("flow[%d]: release lock: %w", i, relErr)
			}
		}
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}

		result.Trace = append(result.Trace, trace)
		if step.Expect != nil {
			for _, msg := range checkExpect(i, step.Expect, trace) {
				result.AddError(msg)
			}
		}
	}
	return nil
}

// process runs one event. Classified processing errors become part of the
// trace; anything else aborts the scenario.
func (h *Harness) process(ctx context.Context, stepNum int, in achievement.Input) (StepTrace, error) {
	trace := StepTrace{Step: stepNum, WorkoutID: in.WorkoutID, Events: []achievement.Event{}}

	res, err := h.processor.Process(ctx, in)
	if err != nil {
		var pe *processor.Error
		if !errors.As(err, &pe) {
			return StepTrace{}, err
		}
		trace.Status = StatusError
		trace.Error = string(pe.Code)
		return trace, nil
	}

	trace.RunID = res.RunID
	trace.Status = string(res.Status)
	trace.Skipped = res.Skipped
	trace.Platinum = res.Platinum
	if len(res.Events) > 0 {
		trace.Events = res.Events
	}
	return trace, nil
}

func checkExpect(index int, want *ExpectClause, got StepTrace) []string {
	var errs []string
	if got.Status != want.Status {
		detail := ""
		if got.Error != "" {
			detail = fmt.Sprintf(" (%s)", got.Error)
		}
		errs = append(errs, fmt.Sprintf("flow[%d]: expected status %s, got %s%s", index, want.Status, got.Status, detail))
	}
	if want.Error != "" && got.Error != want.Error {
		errs = append(errs, fmt.Sprintf("flow[%d]: expected error %s, got %q", index, want.Error, got.Error))
	}
	if want.Events != nil {
		types := eventTypes(got.Events)
		if !slices.Equal(types, want.Events) {
			errs = append(errs, fmt.Sprintf("flow[%d]: expected events %v, got %v", index, want.Events, types))
		}
	}
	return errs
}

func eventTypes(events []achievement.Event) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = string(e.Type)
	}
	return types
}
