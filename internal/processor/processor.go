package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/evaluator"
	"github.com/roach88/achievements/internal/ir"
	"github.com/roach88/achievements/internal/lock"
	"github.com/roach88/achievements/internal/metrics"
	"github.com/roach88/achievements/internal/publish"
	"github.com/roach88/achievements/internal/rules"
	"github.com/roach88/achievements/internal/store"
	"github.com/roach88/achievements/internal/telemetry"
)

// Store is the part of the system of record a run reads and writes.
// Implemented by *store.Store.
type Store interface {
	GetPeriod(ctx context.Context, id int64) (achievement.Period, error)
	GetWorkout(ctx context.Context, id int64) (achievement.Workout, error)
	GetDefinitions(ctx context.Context, ids []int64) ([]achievement.Definition, error)
	HeldAchievementIDs(ctx context.Context, userID, periodID int64, ids []int64) (map[int64]bool, error)
	ProgressExists(ctx context.Context, userID, periodID int64, ids []int64) (map[int64]bool, error)
	CommitOutcome(ctx context.Context, c store.Commit) (store.CommitResult, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error

	HoldsPlatinum(ctx context.Context, userID, periodID int64) (bool, error)
	CountCatalog(ctx context.Context) (int, error)
	CountHeld(ctx context.Context, userID, periodID int64) (int, error)
	PlatinumDefinition(ctx context.Context) (achievement.Definition, error)
}

// Evaluator runs compiled candidates. Implemented by *evaluator.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, candidates []evaluator.Candidate) ([]evaluator.Outcome, error)
}

// Locker serializes runs per user. Implemented by *lock.Guard.
type Locker interface {
	Acquire(ctx context.Context, key string) lock.Result
	Release(ctx context.Context, res lock.Result) error
}

// Status summarizes how a run ended.
type Status string

const (
	// StatusProcessed means the commit stored at least one unlock or progress row.
	StatusProcessed Status = "processed"

	// StatusNoOp means nothing qualified; no transaction was opened.
	StatusNoOp Status = "noop"

	// StatusConflict means another run holds the user's lock. The event
	// must be redelivered.
	StatusConflict Status = "conflict"

	// StatusAlreadyProcessed means the workout's processed marker was set
	// before this run (or by a concurrent run that won the commit).
	StatusAlreadyProcessed Status = "already_processed"
)

// Result reports one run.
type Result struct {
	Status Status
	RunID  string

	// Events lists every event stored in the outbox by this run, in
	// commit order, platinum events last.
	Events []achievement.Event

	// Skipped lists requested achievement ids that were not evaluated:
	// unknown, inactive, platinum-level, or already held.
	Skipped []int64

	// DecisionHash digests the evaluated outcomes. Empty when nothing was evaluated.
	DecisionHash string

	// Platinum is true when this run unlocked the platinum achievement.
	Platinum bool
}

// Processor turns one workout event into unlocks, progress and events.
//
// Thread-safety: a Processor is safe for concurrent use. Runs for the same
// user are serialized by the Locker; runs for different users are independent.
type Processor struct {
	store     Store
	guard     Locker
	eval      Evaluator
	publisher publish.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	runIDs    RunIDGenerator
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithPublisher sets where committed events go. Default: a log publisher.
func WithPublisher(p publish.Publisher) Option {
	return func(proc *Processor) {
		if p != nil {
			proc.publisher = p
		}
	}
}

// WithMetrics sets the collectors. Default: none.
func WithMetrics(m *metrics.Metrics) Option {
	return func(proc *Processor) {
		proc.metrics = m
	}
}

// WithTracer sets the tracer. Default: telemetry.Tracer().
func WithTracer(t trace.Tracer) Option {
	return func(proc *Processor) {
		if t != nil {
			proc.tracer = t
		}
	}
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(proc *Processor) {
		if g != nil {
			proc.runIDs = g
		}
	}
}

// WithClock sets the wall clock used for processed and published markers.
func WithClock(now func() time.Time) Option {
	return func(proc *Processor) {
		if now != nil {
			proc.now = now
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(proc *Processor) {
		if l != nil {
			proc.logger = l
		}
	}
}

// New creates a Processor.
func New(s Store, guard Locker, eval Evaluator, opts ...Option) *Processor {
	p := &Processor{
		store:  s,
		guard:  guard,
		eval:   eval,
		tracer: telemetry.Tracer(),
		runIDs: UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.publisher == nil {
		p.publisher = publish.NewLog(p.logger)
	}
	return p
}

// Process handles one workout event.
//
// Lock contention is reported as StatusConflict with a nil error. Every
// returned error leaves the store unchanged for the failing step, so the
// event can be redelivered as is.
func (p *Processor) Process(ctx context.Context, in achievement.Input) (res Result, err error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "processor.Process", trace.WithAttributes(
		attribute.Int64("user_id", in.UserID),
		attribute.Int64("period_id", in.PeriodID),
		attribute.Int64("workout_id", in.WorkoutID),
	))
	defer func() {
		status := string(res.Status)
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("status", status))
		span.End()
		p.metrics.ObserveRun(status, time.Since(start))
	}()

	if err := in.Validate(); err != nil {
		return Result{}, newInvalidInput(err)
	}

	runID := p.runIDs.Generate()
	logger := p.logger.With(
		"run_id", runID,
		"user_id", in.UserID,
		"period_id", in.PeriodID,
		"workout_id", in.WorkoutID,
	)

	lease := p.guard.Acquire(ctx, in.LockKey())
	switch lease.Outcome {
	case lock.Conflict:
		p.metrics.LockConflict()
		return Result{Status: StatusConflict, RunID: runID}, nil
	case lock.Error:
		return Result{}, lease.Err
	}
	defer func() {
		_ = p.guard.Release(context.WithoutCancel(ctx), lease)
	}()

	period, err := p.store.GetPeriod(ctx, in.PeriodID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, newPeriodNotFound(in.UserID, in.PeriodID, err)
		}
		return Result{}, fmt.Errorf("process: %w", err)
	}
	workout, err := p.store.GetWorkout(ctx, in.WorkoutID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, newWorkoutNotFound(in.UserID, in.PeriodID, in.WorkoutID, err)
		}
		return Result{}, fmt.Errorf("process: %w", err)
	}

	if workout.ProcessedAt != nil {
		logger.Info("workout already processed", "processed_at", workout.ProcessedAt.UTC())
		res = Result{Status: StatusAlreadyProcessed, RunID: runID}
	} else {
		res, err = p.orchestrate(ctx, logger, runID, in, period)
		if err != nil {
			return Result{}, err
		}
		p.publish(ctx, logger, res.Events)
	}

	platinum, err := p.checkPlatinum(ctx, logger, runID, in)
	if err != nil {
		return Result{}, err
	}
	if len(platinum) > 0 {
		res.Platinum = true
		res.Events = append(res.Events, platinum...)
		p.publish(ctx, logger, platinum)
	}

	logger.Info("workout processed", "status", res.Status, "events", len(res.Events), "decision_hash", res.DecisionHash)
	return res, nil
}

// orchestrate evaluates every candidate and commits the queued outcomes
// together with the workout's processed marker.
func (p *Processor) orchestrate(ctx context.Context, logger *slog.Logger, runID string, in achievement.Input, period achievement.Period) (Result, error) {
	res := Result{RunID: runID}

	ids := uniqueIDs(in.AchievementIDs)
	defs, err := p.store.GetDefinitions(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("load achievements: %w", err)
	}

	found := make(map[int64]bool, len(defs))
	var candidateDefs []achievement.Definition
	for _, def := range defs {
		found[def.ID] = true
		if def.IsPlatinum() {
			logger.Warn("platinum achievement requested directly; left to the platinum check", "achievement_id", def.ID)
			res.Skipped = append(res.Skipped, def.ID)
			continue
		}
		candidateDefs = append(candidateDefs, def)
	}
	for _, id := range ids {
		if !found[id] {
			logger.Warn("achievement not found or inactive; skipping", "achievement_id", id)
			res.Skipped = append(res.Skipped, id)
		}
	}

	held, err := p.store.HeldAchievementIDs(ctx, in.UserID, in.PeriodID, definitionIDs(candidateDefs))
	if err != nil {
		return Result{}, fmt.Errorf("load held achievements: %w", err)
	}

	var candidates []evaluator.Candidate
	for _, def := range candidateDefs {
		if held[def.ID] {
			logger.Debug("achievement already held", "achievement_id", def.ID)
			res.Skipped = append(res.Skipped, def.ID)
			continue
		}
		compiled, err := rules.Compile(rules.Options{Definition: def, Period: period, Input: in})
		if err != nil {
			return Result{}, fmt.Errorf("compile achievement %d: %w", def.ID, err)
		}
		for _, w := range compiled.Warnings {
			logger.Warn("achievement rule warning", "achievement_id", def.ID, "warning", w)
		}
		logger.Debug("achievement compiled", "achievement_id", def.ID, "operators", compiled.Operators)
		candidates = append(candidates, evaluator.Candidate{Definition: def, Compiled: compiled})
	}
	slices.Sort(res.Skipped)

	if len(candidates) == 0 {
		logger.Info("no achievements to evaluate")
		res.Status = StatusNoOp
		return res, nil
	}

	outcomes, err := p.eval.Evaluate(ctx, candidates)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate: %w", err)
	}
	p.metrics.Evaluated(len(outcomes))

	var tracked []int64
	for i, o := range outcomes {
		if !o.Complete && candidates[i].Definition.HasProgressTracking {
			tracked = append(tracked, o.AchievementID)
		}
	}
	existing, err := p.store.ProgressExists(ctx, in.UserID, in.PeriodID, tracked)
	if err != nil {
		return Result{}, fmt.Errorf("load progress: %w", err)
	}

	commit := store.Commit{
		WorkoutID:   in.WorkoutID,
		ProcessedAt: p.now(),
		RunID:       runID,
	}
	decisions := make(ir.IRArray, 0, len(outcomes))
	for i, o := range outcomes {
		def := candidates[i].Definition
		quantity := int64(math.Floor(o.Progress))
		decisions = append(decisions, ir.IRObject{
			"achievementId": ir.IRInt(def.ID),
			"complete":      ir.IRBool(o.Complete),
			"progress":      ir.IRInt(quantity),
		})

		switch {
		case o.Complete:
			event, err := achievement.NewCreatedEvent(def, in.UserID, in.PeriodID, in.WorkoutID, in.WorkoutDate).WithID()
			if err != nil {
				return Result{}, err
			}
			commit.Unlocks = append(commit.Unlocks, store.Unlock{
				UserID:        in.UserID,
				PeriodID:      in.PeriodID,
				AchievementID: def.ID,
				AchievedAt:    in.WorkoutDate,
				WorkoutID:     in.WorkoutID,
				Events:        []achievement.Event{event},
			})
		case def.HasProgressTracking && quantity > 0:
			event, err := achievement.NewProgressEvent(def, in.UserID, in.PeriodID, in.WorkoutID, quantity, existing[def.ID]).WithID()
			if err != nil {
				return Result{}, err
			}
			commit.Progress = append(commit.Progress, store.ProgressUpdate{
				UserID:        in.UserID,
				PeriodID:      in.PeriodID,
				AchievementID: def.ID,
				Quantity:      quantity,
				Event:         event,
			})
		}
	}

	hash, err := ir.DecisionHash(decisions)
	if err != nil {
		return Result{}, err
	}
	res.DecisionHash = hash

	if len(commit.Unlocks) == 0 && len(commit.Progress) == 0 {
		logger.Info("nothing to record", "evaluated", len(outcomes))
		res.Status = StatusNoOp
		return res, nil
	}

	stored, err := p.store.CommitOutcome(ctx, commit)
	if err != nil {
		return Result{}, err
	}
	if stored.AlreadyProcessed {
		logger.Info("workout claimed by another run; commit rolled back")
		res.Status = StatusAlreadyProcessed
		return res, nil
	}

	res.Status = StatusProcessed
	res.Events = stored.Events
	logger.Info("outcome committed",
		"unlocks", len(commit.Unlocks),
		"progress", len(commit.Progress),
		"decision_hash", hash,
	)
	return res, nil
}

// publish hands committed events to the publisher and marks them in the
// outbox. Failures leave the rows pending for the relay; they never fail
// the run since the commit already happened.
func (p *Processor) publish(ctx context.Context, logger *slog.Logger, events []achievement.Event) {
	if len(events) == 0 {
		return
	}
	for _, e := range events {
		p.metrics.Event(string(e.Type))
	}
	if err := p.publisher.Publish(ctx, events); err != nil {
		logger.Warn("publish failed; events left in outbox", "events", len(events), "error", err)
		return
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := p.store.MarkPublished(ctx, ids, p.now()); err != nil {
		logger.Warn("mark published failed", "events", len(events), "error", err)
	}
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func definitionIDs(defs []achievement.Definition) []int64 {
	ids := make([]int64, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return ids
}
