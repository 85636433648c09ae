package rules

import (
	"strconv"
	"time"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/ir"
	"github.com/roach88/achievements/internal/queryir"
)

// Operators is the fixed priority order: base, period scope, quantity
// metric, workout type filter, frequency. The frequency axis comes last so
// it wins the group key and completeness over the workout type axis.
var Operators = []Operator{
	initialOperator,

	periodSameOperator,
	periodSingleOperator,

	quantityOperator("quantityMeter", achievement.UnitMeter, queryir.Sum{Field: queryir.FieldDistance, Multiplier: 1000}),
	quantityOperator("quantityKm", achievement.UnitKM, queryir.Sum{Field: queryir.FieldDistance}),
	quantityOperator("quantityCalories", achievement.UnitCalories, queryir.Sum{Field: queryir.FieldEnergyBurned}),
	quantityOperator("quantityExercise", achievement.UnitExercise, queryir.Count{}),
	quantityOperator("quantityMinute", achievement.UnitMinute, queryir.Sum{Field: queryir.FieldDuration}),
	quantityOperator("quantityHour", achievement.UnitHour, queryir.Sum{Field: queryir.FieldDuration, Divisor: 60}),
	unknownUnitOperator,

	workoutTypeAnyOfOperator,
	workoutTypeExclusiveAnyOfOperator,
	workoutTypeExclusiveAnyOperator,
	workoutTypeAllOfOperator,

	frequencyOperator("everyDayInSameMonth", achievement.FrequencyDay, achievement.SameMonth, everyDayInSameMonth),
	frequencyOperator("everyWeekInSameMonth", achievement.FrequencyWeek, achievement.SameMonth, everyWeekInSameMonth),
	frequencyOperator("everyDayInSameWeek", achievement.FrequencyDay, achievement.SameWeek, everyDayInSameWeek),
	frequencyOperator("everyDayInSamePeriod", achievement.FrequencyDay, achievement.SamePeriod, everyDayInSamePeriod),
	frequencyOperator("everyWeekInSamePeriod", achievement.FrequencyWeek, achievement.SamePeriod, everyWeekInSamePeriod),
	frequencyOperator("everyMonthInSamePeriod", achievement.FrequencyMonth, achievement.SamePeriod, everyMonthInSamePeriod),
}

var initialOperator = Operator{
	Name:    "initial",
	Axis:    AxisBase,
	Applies: func(Options) bool { return true },
	Apply: func(o Options, c Compiled) Compiled {
		c = c.withFilters(
			queryir.Equals{Field: queryir.FieldUserID, Value: ir.IRInt(o.Input.UserID)},
			queryir.Equals{Field: queryir.FieldActive, Value: ir.IRBool(true)},
			queryir.Equals{Field: queryir.FieldPeriodID, Value: ir.IRInt(o.Input.PeriodID)},
		)
		c = c.withValue(queryir.Zero{})
		needed := o.Definition.QuantityNeeded
		return c.withGroup(nil,
			func(rows []Row) bool { return firstValue(rows) >= needed },
			firstValue,
		)
	},
}

var periodUnits = map[achievement.PeriodCondition]string{
	achievement.SameDay:   "day",
	achievement.SameWeek:  "week",
	achievement.SameMonth: "month",
}

// periodSameOperator keeps workouts that start and end inside the calendar
// bucket containing the triggering workout.
var periodSameOperator = Operator{
	Name: "periodSame",
	Axis: AxisPeriod,
	Applies: func(o Options) bool {
		_, ok := periodUnits[o.Definition.PeriodCondition]
		return ok
	},
	Apply: func(o Options, c Compiled) Compiled {
		start, end := bucketBounds(o.Input.WorkoutDate, periodUnits[o.Definition.PeriodCondition])
		return c.withFilters(
			queryir.AtOrAfter{Field: queryir.FieldStartedAt, Time: start},
			queryir.AtOrBefore{Field: queryir.FieldEndedAt, Time: end},
		)
	},
}

var periodSingleOperator = Operator{
	Name:    "periodSingle",
	Axis:    AxisPeriod,
	Applies: func(o Options) bool { return o.Definition.PeriodCondition == achievement.SingleSession },
	Apply: func(o Options, c Compiled) Compiled {
		return c.withFilters(queryir.Equals{Field: queryir.FieldID, Value: ir.IRInt(o.Input.WorkoutID)})
	},
}

func quantityOperator(name string, unit achievement.QuantityUnit, value queryir.Value) Operator {
	return Operator{
		Name:    name,
		Axis:    AxisQuantity,
		Applies: func(o Options) bool { return o.Definition.QuantityUnit == unit },
		Apply: func(_ Options, c Compiled) Compiled {
			return c.withValue(value)
		},
	}
}

// unknownUnitOperator leaves the value at zero, so the definition never
// completes, and records why.
var unknownUnitOperator = Operator{
	Name: "quantityUnknown",
	Axis: AxisQuantity,
	Applies: func(o Options) bool {
		switch o.Definition.QuantityUnit {
		case achievement.UnitMeter, achievement.UnitKM, achievement.UnitCalories,
			achievement.UnitExercise, achievement.UnitMinute, achievement.UnitHour:
			return false
		}
		return true
	},
	Apply: func(o Options, c Compiled) Compiled {
		return c.withWarning("unknown quantity unit %d: value stays 0", int64(o.Definition.QuantityUnit))
	},
}

func allowedTypes(o Options) queryir.In {
	values := make([]ir.IRValue, len(o.Definition.WorkoutTypeIDs))
	for i, id := range o.Definition.WorkoutTypeIDs {
		values[i] = ir.IRInt(id)
	}
	return queryir.In{Field: queryir.FieldWorkoutTypeID, Values: values}
}

var byWorkoutType = queryir.FieldKey{Field: queryir.FieldWorkoutTypeID}

// distinctGroups completes once the number of groups reaches needed.
func distinctGroups(needed float64) (CompletenessFunc, ProgressFunc) {
	return func(rows []Row) bool { return float64(len(rows)) >= needed },
		func(rows []Row) float64 { return float64(len(rows)) }
}

var workoutTypeAnyOfOperator = Operator{
	Name:    "workoutTypeAnyOf",
	Axis:    AxisWorkoutType,
	Applies: func(o Options) bool { return o.Definition.WorkoutTypeCondition == achievement.AnyOf },
	Apply: func(o Options, c Compiled) Compiled {
		return c.withFilters(allowedTypes(o))
	},
}

var workoutTypeExclusiveAnyOfOperator = Operator{
	Name:    "workoutTypeExclusiveAnyOf",
	Axis:    AxisWorkoutType,
	Applies: func(o Options) bool { return o.Definition.WorkoutTypeCondition == achievement.ExclusiveAnyOf },
	Apply: func(o Options, c Compiled) Compiled {
		complete, progress := distinctGroups(o.Definition.QuantityNeeded)
		return c.withFilters(allowedTypes(o)).withGroup(byWorkoutType, complete, progress)
	},
}

var workoutTypeExclusiveAnyOperator = Operator{
	Name:    "workoutTypeExclusiveAny",
	Axis:    AxisWorkoutType,
	Applies: func(o Options) bool { return o.Definition.WorkoutTypeCondition == achievement.ExclusiveAny },
	Apply: func(o Options, c Compiled) Compiled {
		complete, progress := distinctGroups(o.Definition.QuantityNeeded)
		return c.withGroup(byWorkoutType, complete, progress)
	},
}

// workoutTypeAllOfOperator requires every allowed type to appear at least
// once. Rows are restricted to allowed types, so extra types never count.
var workoutTypeAllOfOperator = Operator{
	Name:    "workoutTypeAllOf",
	Axis:    AxisWorkoutType,
	Applies: func(o Options) bool { return o.Definition.WorkoutTypeCondition == achievement.AllOf },
	Apply: func(o Options, c Compiled) Compiled {
		required := newKeySet()
		for _, id := range o.Definition.WorkoutTypeIDs {
			required.add(strconv.FormatInt(id, 10))
		}
		complete, progress := everyKey(required)
		return c.withFilters(allowedTypes(o)).withGroup(byWorkoutType, complete, progress)
	},
}

// frequencyPlan returns the group key plus completeness and progress for
// one frequency-in-period combination.
type frequencyPlan func(o Options) (queryir.Key, CompletenessFunc, ProgressFunc)

func frequencyOperator(name string, freq achievement.Frequency, scope achievement.PeriodCondition, plan frequencyPlan) Operator {
	return Operator{
		Name: name,
		Axis: AxisFrequency,
		Applies: func(o Options) bool {
			d := o.Definition
			return d.FrequencyCondition == achievement.Every && d.Frequency == freq && d.PeriodCondition == scope
		},
		Apply: func(o Options, c Compiled) Compiled {
			key, complete, progress := plan(o)
			return c.withGroup(key, complete, progress)
		},
	}
}

var (
	byDayOfMonth = queryir.DayOfMonth{Field: queryir.FieldStartedAt}
	byDate       = queryir.CalendarDate{Field: queryir.FieldStartedAt}
	byWeek       = queryir.YearWeek{Field: queryir.FieldStartedAt}
	byMonth      = queryir.YearMonth{Field: queryir.FieldStartedAt}
)

func everyDayInSameMonth(o Options) (queryir.Key, CompletenessFunc, ProgressFunc) {
	start, end := bucketBounds(o.Input.WorkoutDate, "month")
	complete, progress := everyKey(keysBetween(start, end, DayKey))
	return byDayOfMonth, complete, progress
}

func everyDayInSameWeek(o Options) (queryir.Key, CompletenessFunc, ProgressFunc) {
	start, end := bucketBounds(o.Input.WorkoutDate, "week")
	complete, progress := everyKey(keysBetween(start, end, DayKey))
	return byDayOfMonth, complete, progress
}

// everyWeekInSameMonth groups by day of month, maps each day back onto the
// triggering month and requires every ISO week the month touches.
func everyWeekInSameMonth(o Options) (queryir.Key, CompletenessFunc, ProgressFunc) {
	start, end := bucketBounds(o.Input.WorkoutDate, "month")
	required := keysBetween(start, end, WeekKey)

	weeksOf := func(rows []Row) []Row {
		weeks := make([]Row, 0, len(rows))
		for _, row := range rows {
			day, err := strconv.Atoi(row.GroupKey)
			if err != nil || day < 1 {
				continue
			}
			date := start.AddDate(0, 0, day-1)
			if date.Month() != start.Month() {
				continue
			}
			weeks = append(weeks, Row{Value: row.Value, GroupKey: WeekKey(date)})
		}
		return weeks
	}

	complete, progress := everyKey(required)
	return byDayOfMonth,
		func(rows []Row) bool { return complete(weeksOf(rows)) },
		func(rows []Row) float64 { return progress(weeksOf(rows)) }
}

func everyDayInSamePeriod(o Options) (queryir.Key, CompletenessFunc, ProgressFunc) {
	complete, progress := everyKey(keysBetween(o.Period.StartAt, o.Period.EndAt, DateKey))
	return byDate, complete, progress
}

func everyWeekInSamePeriod(o Options) (queryir.Key, CompletenessFunc, ProgressFunc) {
	complete, progress := everyKey(keysBetween(o.Period.StartAt, o.Period.EndAt, WeekKey))
	return byWeek, complete, progress
}

func everyMonthInSamePeriod(o Options) (queryir.Key, CompletenessFunc, ProgressFunc) {
	complete, progress := everyKey(keysBetween(o.Period.StartAt, o.Period.EndAt, MonthKey))
	return byMonth, complete, progress
}

// RequiredKeys lists the calendar keys a frequency definition must cover,
// or nil when the definition has no frequency. Used by explain output.
func RequiredKeys(o Options) []string {
	d := o.Definition
	if d.FrequencyCondition != achievement.Every {
		return nil
	}
	var from, to time.Time
	var render func(time.Time) string
	switch {
	case d.PeriodCondition == achievement.SameMonth && d.Frequency == achievement.FrequencyDay:
		from, to = bucketBounds(o.Input.WorkoutDate, "month")
		render = DayKey
	case d.PeriodCondition == achievement.SameMonth && d.Frequency == achievement.FrequencyWeek:
		from, to = bucketBounds(o.Input.WorkoutDate, "month")
		render = WeekKey
	case d.PeriodCondition == achievement.SameWeek && d.Frequency == achievement.FrequencyDay:
		from, to = bucketBounds(o.Input.WorkoutDate, "week")
		render = DayKey
	case d.PeriodCondition == achievement.SamePeriod && d.Frequency == achievement.FrequencyDay:
		from, to, render = o.Period.StartAt, o.Period.EndAt, DateKey
	case d.PeriodCondition == achievement.SamePeriod && d.Frequency == achievement.FrequencyWeek:
		from, to, render = o.Period.StartAt, o.Period.EndAt, WeekKey
	case d.PeriodCondition == achievement.SamePeriod && d.Frequency == achievement.FrequencyMonth:
		from, to, render = o.Period.StartAt, o.Period.EndAt, MonthKey
	default:
		return nil
	}
	return keysBetween(from, to, render).order
}
