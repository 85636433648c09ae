package queryir

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/achievements/internal/ir"
)

// ValidationResult lists problems found in an aggregate.
//
// Errors make the aggregate uncompilable. Warnings flag aggregates that
// compile but can never produce a meaningful value, such as an In over an
// empty list.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Err joins Errors into a single error, or returns nil.
func (r ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, msg := range r.Errors {
		errs[i] = errors.New(msg)
	}
	return fmt.Errorf("invalid aggregate: %w", errors.Join(errs...))
}

// Validate checks fields and literal types against the workouts table.
// It is a pure function.
func Validate(agg Aggregate) ValidationResult {
	v := &validator{}
	for _, p := range agg.Filters {
		v.validatePredicate(p)
	}
	v.validateValue(agg.Value)
	if agg.GroupBy != nil {
		v.validateKey(agg.GroupBy)
	}
	return ValidationResult{Errors: v.errors, Warnings: v.warnings}
}

type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		v.addError("nil predicate")
	case Equals:
		v.validateLiteral(pred.Field, pred.Value)
	case In:
		if len(pred.Values) == 0 {
			v.addWarning("field %q compared to an empty list matches nothing", pred.Field)
		}
		for _, val := range pred.Values {
			v.validateLiteral(pred.Field, val)
		}
	case AtOrAfter:
		v.validateTimeBound(pred.Field, pred.Time)
	case AtOrBefore:
		v.validateTimeBound(pred.Field, pred.Time)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addError("unknown predicate type %T", p)
	}
}

func (v *validator) validateLiteral(f Field, val ir.IRValue) {
	switch f.Kind() {
	case KindInt:
		if _, ok := val.(ir.IRInt); !ok {
			v.addError("field %q needs an integer literal, got %T", f, val)
		}
	case KindBool:
		if _, ok := val.(ir.IRBool); !ok {
			v.addError("field %q needs a boolean literal, got %T", f, val)
		}
	case KindUnknown:
		v.addError("unknown field %q", f)
	default:
		v.addError("field %q cannot be compared to a literal", f)
	}
}

func (v *validator) validateTimeBound(f Field, t time.Time) {
	if f.Kind() != KindTime {
		v.addError("field %q is not a timestamp", f)
	}
	if t.IsZero() {
		v.addError("field %q bounded by the zero time", f)
	}
}

func (v *validator) validateValue(val Value) {
	switch value := val.(type) {
	case nil:
		v.addError("nil value expression")
	case Zero, Count:
	case Sum:
		if value.Field.Kind() != KindNumeric {
			v.addError("cannot sum field %q", value.Field)
		}
		if value.Multiplier < 0 || value.Divisor < 0 {
			v.addError("sum of %q has a negative scale", value.Field)
		}
	default:
		v.addError("unknown value type %T", val)
	}
}

func (v *validator) validateKey(k Key) {
	f := KeyField(k)
	switch k.(type) {
	case FieldKey:
		if f.Kind() != KindInt {
			v.addError("cannot group by field %q", f)
		}
	case DayOfMonth, CalendarDate, YearWeek, YearMonth:
		if f.Kind() != KindTime {
			v.addError("calendar key over non-timestamp field %q", f)
		}
	default:
		v.addError("unknown key type %T", k)
	}
}
