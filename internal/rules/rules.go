package rules

import (
	"fmt"
	"slices"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/queryir"
)

// Options is everything an operator may read. It is never modified.
type Options struct {
	Definition achievement.Definition
	Period     achievement.Period
	Input      achievement.Input
}

// Row is one aggregation result row. GroupKey is empty for ungrouped
// aggregates and otherwise holds the rendered key documented in queryir.
type Row struct {
	Value    float64
	GroupKey string
}

// CompletenessFunc reports whether rows satisfy a definition.
type CompletenessFunc func(rows []Row) bool

// ProgressFunc computes the partial-credit quantity for rows.
type ProgressFunc func(rows []Row) float64

// Compiled is the result of folding every applicable operator over a
// definition. IsComplete and ProgressQuantity always agree with Aggregate:
// they are set by the same operator that chose the group key.
type Compiled struct {
	Aggregate        queryir.Aggregate
	IsComplete       CompletenessFunc
	ProgressQuantity ProgressFunc

	// Operators lists the names of applied operators in order.
	Operators []string
	// Warnings holds non-fatal problems, such as an unknown quantity unit.
	Warnings []string
}

// withFilters returns a copy of c with predicates appended. The receiver's
// filter slice is never shared with the result.
func (c Compiled) withFilters(preds ...queryir.Predicate) Compiled {
	filters := make([]queryir.Predicate, 0, len(c.Aggregate.Filters)+len(preds))
	filters = append(filters, c.Aggregate.Filters...)
	c.Aggregate.Filters = append(filters, preds...)
	return c
}

func (c Compiled) withValue(v queryir.Value) Compiled {
	c.Aggregate.Value = v
	return c
}

func (c Compiled) withGroup(k queryir.Key, complete CompletenessFunc, progress ProgressFunc) Compiled {
	c.Aggregate.GroupBy = k
	c.IsComplete = complete
	c.ProgressQuantity = progress
	return c
}

func (c Compiled) withWarning(format string, args ...any) Compiled {
	c.Warnings = append(slices.Clone(c.Warnings), fmt.Sprintf(format, args...))
	return c
}

// Axis groups operators by the configuration dimension they own.
type Axis int

const (
	AxisBase Axis = iota
	AxisPeriod
	AxisQuantity
	AxisWorkoutType
	AxisFrequency
)

func (a Axis) String() string {
	switch a {
	case AxisBase:
		return "base"
	case AxisPeriod:
		return "period"
	case AxisQuantity:
		return "quantity"
	case AxisWorkoutType:
		return "workoutType"
	case AxisFrequency:
		return "frequency"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Operator is one stateless rule fragment: an applicability predicate and
// a pure transform of the compiled query.
type Operator struct {
	Name    string
	Axis    Axis
	Applies func(o Options) bool
	Apply   func(o Options, c Compiled) Compiled
}

// Compile folds the default operator table over o.
func Compile(o Options) (Compiled, error) {
	return Fold(o, Operators)
}

// Fold applies every applicable operator in ops, in order. Later operators
// may override the value, group key and completeness set by earlier ones.
// The same operator name is applied at most once.
func Fold(o Options, ops []Operator) (Compiled, error) {
	if o.Input.WorkoutDate.IsZero() {
		return Compiled{}, fmt.Errorf("compile achievement %d: workout date is required", o.Definition.ID)
	}

	compiled := Compiled{}
	seen := make(map[string]bool, len(ops))
	for _, op := range ops {
		if seen[op.Name] {
			continue
		}
		seen[op.Name] = true
		if !op.Applies(o) {
			continue
		}
		compiled = op.Apply(o, compiled)
		compiled.Operators = append(slices.Clone(compiled.Operators), op.Name)
	}

	if compiled.Aggregate.Value == nil || compiled.IsComplete == nil || compiled.ProgressQuantity == nil {
		return Compiled{}, fmt.Errorf("compile achievement %d: no base operator applied", o.Definition.ID)
	}

	result := queryir.Validate(compiled.Aggregate)
	if err := result.Err(); err != nil {
		return Compiled{}, fmt.Errorf("compile achievement %d: %w", o.Definition.ID, err)
	}
	for _, w := range result.Warnings {
		compiled = compiled.withWarning("%s", w)
	}
	return compiled, nil
}

// firstValue is the value of the single ungrouped row. A missing row is 0,
// consistent with the SQL coalescing of empty sums.
func firstValue(rows []Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	return rows[0].Value
}

// coverage counts how many required keys appear among rows.
func coverage(required *keySet, rows []Row) int {
	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[row.GroupKey] = true
	}
	n := 0
	for _, key := range required.order {
		if present[key] {
			n++
		}
	}
	return n
}

// everyKey builds the completeness/progress pair for a frequency operator.
// An empty required set never completes.
func everyKey(required *keySet) (CompletenessFunc, ProgressFunc) {
	complete := func(rows []Row) bool {
		return len(required.order) > 0 && coverage(required, rows) == len(required.order)
	}
	progress := func(rows []Row) float64 {
		return float64(coverage(required, rows))
	}
	return complete, progress
}
