package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario replays a sequence of workout events against a catalog and
// asserts on the resulting events and stored state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the CUE catalog file or directory to seed.
	// Relative paths are resolved against the scenario file's directory.
	Catalog string `yaml:"catalog"`

	// Now is the RFC 3339 wall clock reading used for processed markers.
	// Defaults to DefaultNow.
	Now string `yaml:"now,omitempty"`

	// Workouts are stored before the flow runs.
	Workouts []WorkoutSpec `yaml:"workouts"`

	// Flow is the ordered list of events to process.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultNow is the clock reading when a scenario sets none.
const DefaultNow = "2024-06-01T00:00:00Z"

// WorkoutSpec is one recorded workout.
type WorkoutSpec struct {
	ID       int64   `yaml:"id"`
	User     int64   `yaml:"user"`
	Period   int64   `yaml:"period"`
	Start    string  `yaml:"start"`
	Minutes  float64 `yaml:"minutes"`
	Km       float64 `yaml:"km,omitempty"`
	Calories float64 `yaml:"calories,omitempty"`
	Type     int64   `yaml:"type"`

	// Inactive stores the workout with active = false.
	Inactive bool `yaml:"inactive,omitempty"`

	// Deferred workouts are stored right before the first step naming them
	// instead of before the flow, so earlier steps do not see them.
	Deferred bool `yaml:"deferred,omitempty"`
}

// FlowStep is one processing event.
type FlowStep struct {
	// Workout is the workout id carried by the event.
	Workout int64 `yaml:"workout"`

	// Achievements lists the candidate achievement ids.
	Achievements []int64 `yaml:"achievements"`

	// User and Period default to the workout's. Set them for workouts that
	// are not part of the scenario.
	User   int64 `yaml:"user,omitempty"`
	Period int64 `yaml:"period,omitempty"`

	// Date is the event's workout date. Defaults to the workout start.
	Date string `yaml:"date,omitempty"`

	// HoldLock makes another owner hold the user's lock for this step.
	HoldLock bool `yaml:"hold_lock,omitempty"`

	// Expect validates the step. If nil, any outcome is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Status is a processor status or "error".
	Status string `yaml:"status"`

	// Error is the expected error code when Status is "error".
	Error string `yaml:"error,omitempty"`

	// Events lists the expected event types in order. Nil skips the check;
	// an empty list requires no events.
	Events []string `yaml:"events,omitempty"`
}

// StatusError is the expected status of a step that fails.
const StatusError = "error"

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is an event type (event_contains, event_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event type order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Achievement narrows event_contains and selects the progress row.
	Achievement int64 `yaml:"achievement,omitempty"`

	// Quantity is the expected progress quantity (progress, event_contains).
	Quantity *int64 `yaml:"quantity,omitempty"`

	// Count is the expected number of matching events (event_count).
	Count int `yaml:"count,omitempty"`

	// User and Period select stored rows (holds, progress).
	User   int64 `yaml:"user,omitempty"`
	Period int64 `yaml:"period,omitempty"`

	// Achievements is the exact set of held achievement ids (holds).
	Achievements []int64 `yaml:"achievements,omitempty"`
}

// Assertion type constants.
const (
	AssertEventContains = "event_contains"
	AssertEventOrder    = "event_order"
	AssertEventCount    = "event_count"
	AssertHolds         = "holds"
	AssertProgress      = "progress"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
		return fmt.Errorf("catalog not found: %s", s.Catalog)
	}

	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	workouts := make(map[int64]bool, len(s.Workouts))
	for i, w := range s.Workouts {
		if w.ID <= 0 {
			return fmt.Errorf("workouts[%d]: id must be positive", i)
		}
		if workouts[w.ID] {
			return fmt.Errorf("workouts[%d]: duplicate id %d", i, w.ID)
		}
		workouts[w.ID] = true
		if w.User <= 0 || w.Period <= 0 {
			return fmt.Errorf("workouts[%d]: user and period are required", i)
		}
		if _, err := time.Parse(time.RFC3339, w.Start); err != nil {
			return fmt.Errorf("workouts[%d]: start: %w", i, err)
		}
		if w.Minutes < 0 || w.Km < 0 || w.Calories < 0 {
			return fmt.Errorf("workouts[%d]: quantities must be non-negative", i)
		}
	}

	for i, step := range s.Flow {
		if step.Workout <= 0 {
			return fmt.Errorf("flow[%d]: workout is required", i)
		}
		if !workouts[step.Workout] && (step.User <= 0 || step.Period <= 0) {
			return fmt.Errorf("flow[%d]: user and period are required for workout %d outside the scenario", i, step.Workout)
		}
		if !workouts[step.Workout] && step.Date == "" {
			return fmt.Errorf("flow[%d]: date is required for workout %d outside the scenario", i, step.Workout)
		}
		if step.Date != "" {
			if _, err := time.Parse(time.RFC3339, step.Date); err != nil {
				return fmt.Errorf("flow[%d]: date: %w", i, err)
			}
		}
		if step.Expect != nil {
			if err := validateExpect(i, step.Expect); err != nil {
				return err
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

var stepStatuses = []string{"processed", "noop", "conflict", "already_processed", StatusError}

func validateExpect(index int, e *ExpectClause) error {
	if !slices.Contains(stepStatuses, e.Status) {
		return fmt.Errorf("flow[%d].expect: unknown status %q", index, e.Status)
	}
	if e.Error != "" && e.Status != StatusError {
		return fmt.Errorf("flow[%d].expect: error is only valid with status %q", index, StatusError)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertHolds:
		if a.User <= 0 || a.Period <= 0 {
			return fmt.Errorf("assertions[%d]: user and period are required for holds", index)
		}
	case AssertProgress:
		if a.User <= 0 || a.Period <= 0 || a.Achievement <= 0 {
			return fmt.Errorf("assertions[%d]: user, period and achievement are required for progress", index)
		}
		if a.Quantity == nil {
			return fmt.Errorf("assertions[%d]: quantity is required for progress", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// FindScenarios lists the .yaml and .yml files directly under dir whose
// base name (without extension) matches filter, a filepath.Match pattern.
// An empty filter matches everything. Files are returned in name order.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(entry.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
