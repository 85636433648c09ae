package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Events   []achievement.Event // Every event of the run, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for i, event := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s achievement=%d%s\n", i+1, event.Type, event.AchievementID, quantitySuffix(event))
		}
	}

	return buf.String()
}

func quantitySuffix(e achievement.Event) string {
	if e.Quantity == nil {
		return ""
	}
	return fmt.Sprintf(" quantity=%d", *e.Quantity)
}

// matchEvent reports whether e matches the assertion's type, achievement
// and quantity. Zero achievement and nil quantity match anything.
func matchEvent(e achievement.Event, a Assertion) bool {
	if string(e.Type) != a.Event {
		return false
	}
	if a.Achievement != 0 && e.AchievementID != a.Achievement {
		return false
	}
	if a.Quantity != nil && (e.Quantity == nil || *e.Quantity != *a.Quantity) {
		return false
	}
	return true
}

func describe(a Assertion) string {
	desc := a.Event
	if a.Achievement != 0 {
		desc += fmt.Sprintf(" for achievement %d", a.Achievement)
	}
	if a.Quantity != nil {
		desc += fmt.Sprintf(" with quantity %d", *a.Quantity)
	}
	return desc
}

// assertEventContains checks that at least one event matches.
func assertEventContains(events []achievement.Event, a Assertion) error {
	for _, e := range events {
		if matchEvent(e, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: describe(a),
		Actual:   "not found",
		Events:   events,
	}
}

// assertEventOrder checks that event types first appear in the given order.
// Types don't need to be consecutive.
func assertEventOrder(events []achievement.Event, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range events {
		if _, seen := positions[string(e.Type)]; !seen {
			positions[string(e.Type)] = i + 1 // 1-indexed for readability
		}
	}

	for _, want := range a.Events {
		if positions[want] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", want),
				Events:   events,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Events: events,
			}
		}
	}
	return nil
}

// assertEventCount checks the exact number of matching events.
func assertEventCount(events []achievement.Event, a Assertion) error {
	count := 0
	for _, e := range events {
		if matchEvent(e, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Events:   events,
		}
	}
	return nil
}

// assertHolds checks the exact set of active unlocks for a user in a period.
func assertHolds(ctx context.Context, st *store.Store, a Assertion) error {
	held, err := st.ListUserAchievements(ctx, a.User, a.Period)
	if err != nil {
		return fmt.Errorf("holds: %w", err)
	}
	var got []int64
	for _, ua := range held {
		if ua.Active {
			got = append(got, ua.AchievementID)
		}
	}
	slices.Sort(got)
	want := slices.Clone(a.Achievements)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertHolds,
			Expected: fmt.Sprintf("user %d holds %v in period %d", a.User, want, a.Period),
			Actual:   fmt.Sprintf("holds %v", got),
		}
	}
	return nil
}

// assertProgress checks one stored progress quantity.
func assertProgress(ctx context.Context, st *store.Store, a Assertion) error {
	rows, err := st.ListProgress(ctx, a.User, a.Period)
	if err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	for _, p := range rows {
		if p.AchievementID != a.Achievement {
			continue
		}
		if p.Quantity != *a.Quantity {
			return &AssertionError{
				Type:     AssertProgress,
				Expected: fmt.Sprintf("progress %d for achievement %d", *a.Quantity, a.Achievement),
				Actual:   fmt.Sprintf("progress %d", p.Quantity),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertProgress,
		Expected: fmt.Sprintf("progress %d for achievement %d", *a.Quantity, a.Achievement),
		Actual:   "no progress row",
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// st provides the final state for holds and progress assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st *store.Store) []string {
	var errs []string
	events := result.Events()

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertEventContains:
			err = assertEventContains(events, a)
		case AssertEventOrder:
			err = assertEventOrder(events, a)
		case AssertEventCount:
			err = assertEventCount(events, a)
		case AssertHolds, AssertProgress:
			if st == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, a.Type)
			} else if a.Type == AssertHolds {
				err = assertHolds(ctx, st, a)
			} else {
				err = assertProgress(ctx, st, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
