package evaluator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/querysql"
	"github.com/roach88/achievements/internal/rules"
	"github.com/roach88/achievements/internal/store"
)

// DefaultMaxBatch bounds how many aggregates share one statement.
const DefaultMaxBatch = 50

// Source executes aggregate SQL. Implemented by *store.Store.
type Source interface {
	QueryAggregate(ctx context.Context, query string, args []any, tagged bool) ([]store.AggregateRow, error)
}

// Candidate is a definition and its compiled rule.
type Candidate struct {
	Definition achievement.Definition
	Compiled   rules.Compiled
}

// Outcome is the evaluation of one candidate.
type Outcome struct {
	AchievementID int64
	Complete      bool
	Progress      float64
	Rows          []rules.Row
}

// Evaluator executes candidate aggregates.
//
// Thread-safety: an Evaluator holds no mutable state and is safe for
// concurrent use.
type Evaluator struct {
	source   Source
	compiler *querysql.SQLCompiler
	batch    bool
	maxBatch int
	logger   *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithBatching toggles the unioned single-statement mode. Default: on.
func WithBatching(on bool) Option {
	return func(e *Evaluator) {
		e.batch = on
	}
}

// WithMaxBatch sets how many aggregates may share one statement.
// Values below 1 are ignored.
func WithMaxBatch(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxBatch = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Evaluator reading from source in the given SQL dialect.
func New(source Source, dialect querysql.Dialect, opts ...Option) *Evaluator {
	e := &Evaluator{
		source:   source,
		compiler: querysql.NewSQLCompiler(dialect),
		batch:    true,
		maxBatch: DefaultMaxBatch,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every candidate and returns outcomes in candidate order.
// Any query failure aborts the whole evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, candidates []Candidate) ([]Outcome, error) {
	if len(candidates) == 0 {
		return []Outcome{}, nil
	}

	var (
		rowsByID map[int64][]rules.Row
		err      error
	)
	if e.batch && len(candidates) > 1 {
		rowsByID, err = e.runBatched(ctx, candidates)
	} else {
		rowsByID, err = e.runSingly(ctx, candidates)
	}
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(candidates))
	for i, c := range candidates {
		rows := rowsByID[c.Definition.ID]
		if rows == nil {
			rows = []rules.Row{}
		}
		outcomes[i] = Outcome{
			AchievementID: c.Definition.ID,
			Complete:      c.Compiled.IsComplete(rows),
			Progress:      c.Compiled.ProgressQuantity(rows),
			Rows:          rows,
		}
	}
	return outcomes, nil
}

func (e *Evaluator) runSingly(ctx context.Context, candidates []Candidate) (map[int64][]rules.Row, error) {
	rowsByID := make(map[int64][]rules.Row, len(candidates))
	for _, c := range candidates {
		query, args, err := e.compiler.Compile(c.Compiled.Aggregate)
		if err != nil {
			return nil, fmt.Errorf("compile achievement %d: %w", c.Definition.ID, err)
		}
		result, err := e.source.QueryAggregate(ctx, query, args, false)
		if err != nil {
			return nil, fmt.Errorf("evaluate achievement %d: %w", c.Definition.ID, err)
		}
		rowsByID[c.Definition.ID] = toRows(result)
	}
	return rowsByID, nil
}

func (e *Evaluator) runBatched(ctx context.Context, candidates []Candidate) (map[int64][]rules.Row, error) {
	rowsByID := make(map[int64][]rules.Row, len(candidates))
	for start := 0; start < len(candidates); start += e.maxBatch {
		end := min(start+e.maxBatch, len(candidates))
		chunk := candidates[start:end]

		tagged := make([]querysql.Tagged, len(chunk))
		for i, c := range chunk {
			tagged[i] = querysql.Tagged{Tag: c.Definition.ID, Aggregate: c.Compiled.Aggregate}
		}
		query, args, err := e.compiler.CompileBatch(tagged)
		if err != nil {
			return nil, fmt.Errorf("compile batch: %w", err)
		}
		result, err := e.source.QueryAggregate(ctx, query, args, true)
		if err != nil {
			return nil, fmt.Errorf("evaluate batch of %d: %w", len(chunk), err)
		}
		e.logger.Debug("batch evaluated", "achievements", len(chunk), "rows", len(result))

		for _, row := range result {
			rowsByID[row.AchievementID] = append(rowsByID[row.AchievementID], rules.Row{
				Value:    row.Value,
				GroupKey: row.GroupKey,
			})
		}
	}
	return rowsByID, nil
}

func toRows(result []store.AggregateRow) []rules.Row {
	rows := make([]rules.Row, len(result))
	for i, r := range result {
		rows[i] = rules.Row{Value: r.Value, GroupKey: r.GroupKey}
	}
	return rows
}
