package queryir

import (
	"time"

	"github.com/roach88/achievements/internal/ir"
)

// Table is the only source an Aggregate reads from.
const Table = "workouts"

// Field is a column of the workouts table.
type Field string

const (
	FieldID            Field = "id"
	FieldUserID        Field = "user_id"
	FieldPeriodID      Field = "period_id"
	FieldActive        Field = "active"
	FieldStartedAt     Field = "started_at"
	FieldEndedAt       Field = "ended_at"
	FieldDistance      Field = "distance"
	FieldEnergyBurned  Field = "energy_burned"
	FieldDuration      Field = "duration"
	FieldWorkoutTypeID Field = "workout_type_id"
)

// FieldKind classifies a column for validation.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindInt
	KindBool
	KindTime
	KindNumeric
)

// Kind reports the column type of f.
func (f Field) Kind() FieldKind {
	switch f {
	case FieldID, FieldUserID, FieldPeriodID, FieldWorkoutTypeID:
		return KindInt
	case FieldActive:
		return KindBool
	case FieldStartedAt, FieldEndedAt:
		return KindTime
	case FieldDistance, FieldEnergyBurned, FieldDuration:
		return KindNumeric
	}
	return KindUnknown
}

// Predicate is a filter condition. Sealed.
//
// Predicate types:
//   - Equals: field = literal
//   - In: field IN (literals); an empty list matches nothing
//   - AtOrAfter: field >= time
//   - AtOrBefore: field <= time
//   - And: all predicates hold; empty is always true
type Predicate interface {
	predicateNode()
}

// Equals compares a field to a literal.
type Equals struct {
	Field Field
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In matches a field against a list of literals.
type In struct {
	Field  Field
	Values []ir.IRValue
}

func (In) predicateNode() {}

// AtOrAfter matches rows whose time field is at or after Time.
type AtOrAfter struct {
	Field Field
	Time  time.Time
}

func (AtOrAfter) predicateNode() {}

// AtOrBefore matches rows whose time field is at or before Time.
type AtOrBefore struct {
	Field Field
	Time  time.Time
}

func (AtOrBefore) predicateNode() {}

// And is a conjunction.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Value is the aggregated expression. Sealed.
//
// Every Value yields a number even when no rows match: sums coalesce to 0.
type Value interface {
	valueNode()
}

// Zero is the constant 0. It is the value before any quantity unit applies.
type Zero struct{}

func (Zero) valueNode() {}

// Sum is COALESCE(SUM(field), 0) * Multiplier / Divisor. A zero Multiplier
// or Divisor is treated as 1.
type Sum struct {
	Field      Field
	Multiplier int64
	Divisor    int64
}

func (Sum) valueNode() {}

// Count is COUNT(*).
type Count struct{}

func (Count) valueNode() {}

// Key is a GROUP BY key. Sealed. Backends render every key as text.
type Key interface {
	keyNode()
}

// FieldKey groups by a column's value, e.g. "3" for workout type 3.
type FieldKey struct {
	Field Field
}

func (FieldKey) keyNode() {}

// DayOfMonth groups by day of month without padding: "1".."31".
type DayOfMonth struct {
	Field Field
}

func (DayOfMonth) keyNode() {}

// CalendarDate groups by date: "2006-01-02".
type CalendarDate struct {
	Field Field
}

func (CalendarDate) keyNode() {}

// YearWeek groups by ISO week-year and zero padded ISO week: "2024-01".
type YearWeek struct {
	Field Field
}

func (YearWeek) keyNode() {}

// YearMonth groups by year and zero padded month: "2024-01".
type YearMonth struct {
	Field Field
}

func (YearMonth) keyNode() {}

// Aggregate is one workout aggregation.
//
//	SELECT <Value> AS value, <GroupBy> AS group_key
//	FROM workouts
//	WHERE <Filters...>
//	GROUP BY <GroupBy>
//
// Without GroupBy the result is always exactly one row.
type Aggregate struct {
	Filters []Predicate
	Value   Value
	GroupBy Key // nil = no grouping
}

// Grouped reports whether the aggregate has a group key.
func (a Aggregate) Grouped() bool {
	return a.GroupBy != nil
}

// KeyField returns the column a group key reads from.
func KeyField(k Key) Field {
	switch key := k.(type) {
	case FieldKey:
		return key.Field
	case DayOfMonth:
		return key.Field
	case CalendarDate:
		return key.Field
	case YearWeek:
		return key.Field
	case YearMonth:
		return key.Field
	}
	return ""
}
