package harness

import (
	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/ir"
)

// StepTrace records what one flow step produced.
type StepTrace struct {
	Step      int                 `json:"step"`
	WorkoutID int64               `json:"workout_id"`
	RunID     string              `json:"run_id,omitempty"`
	Status    string              `json:"status"`
	Error     string              `json:"error,omitempty"`
	Skipped   []int64             `json:"skipped,omitempty"`
	Platinum  bool                `json:"platinum,omitempty"`
	Events    []achievement.Event `json:"events"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per flow step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events flattens the events of every step in order.
func (r *Result) Events() []achievement.Event {
	var events []achievement.Event
	for _, step := range r.Trace {
		events = append(events, step.Events...)
	}
	return events
}

// canonical converts a step to the map form ir.MarshalCanonical accepts.
// Event ids and user achievement ids are left out: the former are
// content hashes already covered by the other fields, the latter depend on
// row allocation.
func (s StepTrace) canonical() map[string]any {
	events := make([]any, len(s.Events))
	for i, e := range s.Events {
		events[i] = canonicalEvent(e)
	}
	m := map[string]any{
		"step":       s.Step,
		"workout_id": s.WorkoutID,
		"status":     s.Status,
		"events":     events,
	}
	if s.RunID != "" {
		m["run_id"] = s.RunID
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	if len(s.Skipped) > 0 {
		m["skipped"] = ir.IRInts(s.Skipped...)
	}
	if s.Platinum {
		m["platinum"] = true
	}
	return m
}

func canonicalEvent(e achievement.Event) map[string]any {
	m := map[string]any{
		"type":          string(e.Type),
		"achievementId": e.AchievementID,
	}
	if e.WorkoutID != 0 {
		m["workoutId"] = e.WorkoutID
	}
	if e.AchievedAt != nil {
		m["achievedAt"] = ir.IRTime(*e.AchievedAt)
	}
	if e.LevelID != 0 {
		m["levelId"] = int64(e.LevelID)
	}
	if e.Quantity != nil {
		m["quantity"] = *e.Quantity
	}
	return m
}
