package achievement

import (
	"errors"
	"fmt"
	"time"
)

// PeriodCondition scopes which workouts count toward a definition.
type PeriodCondition string

const (
	SameDay       PeriodCondition = "sameDay"
	SameWeek      PeriodCondition = "sameWeek"
	SameMonth     PeriodCondition = "sameMonth"
	SamePeriod    PeriodCondition = "samePeriod"
	SingleSession PeriodCondition = "singleSession"
)

// Valid reports whether c is a known period condition.
func (c PeriodCondition) Valid() bool {
	switch c {
	case SameDay, SameWeek, SameMonth, SamePeriod, SingleSession:
		return true
	}
	return false
}

// WorkoutTypeCondition controls how the workout-type allow-list is applied.
type WorkoutTypeCondition string

const (
	AnyOf          WorkoutTypeCondition = "anyOf"
	ExclusiveAnyOf WorkoutTypeCondition = "exclusiveAnyOf"
	ExclusiveAny   WorkoutTypeCondition = "exclusiveAny"
	AllOf          WorkoutTypeCondition = "allOf"
	NoTypeFilter   WorkoutTypeCondition = "none"
)

// Valid reports whether c is a known workout type condition.
func (c WorkoutTypeCondition) Valid() bool {
	switch c {
	case AnyOf, ExclusiveAnyOf, ExclusiveAny, AllOf, NoTypeFilter:
		return true
	}
	return false
}

// Frequency is the calendar sub-unit a recurring definition repeats over.
// The zero value means the definition has no frequency.
type Frequency string

const (
	NoFrequency    Frequency = ""
	FrequencyDay   Frequency = "day"
	FrequencyWeek  Frequency = "week"
	FrequencyMonth Frequency = "month"
)

// FrequencyCondition qualifies Frequency. Only Every is defined.
type FrequencyCondition string

const (
	NoFrequencyCondition FrequencyCondition = ""
	Every                FrequencyCondition = "every"
)

// QuantityUnit identifies the metric aggregated for a definition.
// Values match the catalog's quantity unit ids.
type QuantityUnit int64

const (
	UnitMeter    QuantityUnit = 1
	UnitKM       QuantityUnit = 2
	UnitCalories QuantityUnit = 3
	UnitExercise QuantityUnit = 4
	UnitMinute   QuantityUnit = 6
	UnitHour     QuantityUnit = 7
)

var unitNames = map[QuantityUnit]string{
	UnitMeter:    "meter",
	UnitKM:       "km",
	UnitCalories: "calories",
	UnitExercise: "exercise",
	UnitMinute:   "minute",
	UnitHour:     "hour",
}

func (u QuantityUnit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("unit(%d)", int64(u))
}

// ParseQuantityUnit maps a unit name to its id.
func ParseQuantityUnit(name string) (QuantityUnit, error) {
	for unit, n := range unitNames {
		if n == name {
			return unit, nil
		}
	}
	return 0, fmt.Errorf("unknown quantity unit %q", name)
}

// Level is the ordinal tier of a definition.
type Level int64

const (
	LevelBronze   Level = 1
	LevelSilver   Level = 2
	LevelGold     Level = 3
	LevelPlatinum Level = 4
)

var levelNames = map[Level]string{
	LevelBronze:   "bronze",
	LevelSilver:   "silver",
	LevelGold:     "gold",
	LevelPlatinum: "platinum",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int64(l))
}

// ParseLevel maps a level name to its ordinal.
func ParseLevel(name string) (Level, error) {
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", name)
}

// Definition is one configurable achievement rule from the catalog.
// It is read-only for the duration of an evaluation.
type Definition struct {
	ID                   int64
	Name                 string
	Active               bool
	PeriodCondition      PeriodCondition
	QuantityUnit         QuantityUnit
	QuantityNeeded       float64
	WorkoutTypeCondition WorkoutTypeCondition
	Frequency            Frequency
	FrequencyCondition   FrequencyCondition
	HasProgressTracking  bool
	Level                Level
	WorkoutTypeIDs       []int64
}

// IsPlatinum reports whether d is the meta achievement.
func (d Definition) IsPlatinum() bool {
	return d.Level == LevelPlatinum
}

// Validate checks the definition is internally consistent.
func (d Definition) Validate() error {
	var errs []error
	if d.ID <= 0 {
		errs = append(errs, fmt.Errorf("id must be positive, got %d", d.ID))
	}
	if !d.PeriodCondition.Valid() {
		errs = append(errs, fmt.Errorf("unknown period condition %q", d.PeriodCondition))
	}
	if !d.WorkoutTypeCondition.Valid() {
		errs = append(errs, fmt.Errorf("unknown workout type condition %q", d.WorkoutTypeCondition))
	}
	if d.QuantityNeeded <= 0 && !d.IsPlatinum() {
		errs = append(errs, fmt.Errorf("quantity needed must be positive, got %v", d.QuantityNeeded))
	}
	if _, ok := levelNames[d.Level]; !ok {
		errs = append(errs, fmt.Errorf("unknown level %d", d.Level))
	}
	switch d.Frequency {
	case NoFrequency, FrequencyDay, FrequencyWeek, FrequencyMonth:
	default:
		errs = append(errs, fmt.Errorf("unknown frequency %q", d.Frequency))
	}
	switch d.FrequencyCondition {
	case NoFrequencyCondition, Every:
	default:
		errs = append(errs, fmt.Errorf("unknown frequency condition %q", d.FrequencyCondition))
	}
	switch d.WorkoutTypeCondition {
	case AnyOf, ExclusiveAnyOf, AllOf:
		if len(d.WorkoutTypeIDs) == 0 {
			errs = append(errs, fmt.Errorf("workout type condition %q needs at least one workout type", d.WorkoutTypeCondition))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("achievement %d: %w", d.ID, err)
	}
	return nil
}

// Period is a bounded window (a season) that scopes samePeriod rules.
type Period struct {
	ID      int64
	StartAt time.Time
	EndAt   time.Time
	Active  bool
}

// Workout is one recorded training session.
type Workout struct {
	ID            int64
	UserID        int64
	PeriodID      int64
	StartedAt     time.Time
	EndedAt       time.Time
	Distance      float64 // km
	EnergyBurned  float64 // kcal
	Duration      float64 // minutes
	WorkoutTypeID int64
	Active        bool
	ProcessedAt   *time.Time
	Metadata      map[string]any
}

// UserAchievement records an unlocked definition for a user in a period.
type UserAchievement struct {
	ID            int64
	UserID        int64
	PeriodID      int64
	AchievementID int64
	AchievedAt    time.Time
	Active        bool
}

// Progress is the partial-credit row for a definition not yet unlocked.
type Progress struct {
	UserID        int64
	PeriodID      int64
	AchievementID int64
	Quantity      int64
	Active        bool
}
