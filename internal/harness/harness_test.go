package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievements/internal/achievement"
)

const testCatalog = "../catalog/testdata/catalog.cue"

func TestScenarios_Golden(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, file := range files {
		scenario, err := LoadScenario(file)
		require.NoError(t, err, file)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/season_progress.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	// Event ids are content hashes, so they repeat across runs too.
	require.Equal(t, len(first.Events()), len(second.Events()))
	for i, e := range first.Events() {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, e.ID, second.Events()[i].ID)
	}
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectations",
		Description: "Expectations that do not hold",
		Catalog:     testCatalog,
		Workouts: []WorkoutSpec{
			{ID: 10, User: 7, Period: 1, Start: "2024-01-02T09:00:00Z", Minutes: 40, Km: 1.5, Type: 1},
		},
		Flow: []FlowStep{
			{
				Workout:      10,
				Achievements: []int64{1},
				Expect:       &ExpectClause{Status: "noop", Events: []string{}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertHolds, User: 7, Period: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected status noop, got processed")
	assert.Contains(t, result.Errors[1], "expected events []")
	assert.Contains(t, result.Errors[2], "Assertion failed: holds")
}

func TestRun_ErrorStepWithoutExpectation(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_period",
		Description: "Unknown period",
		Catalog:     testCatalog,
		Workouts: []WorkoutSpec{
			{ID: 10, User: 7, Period: 5, Start: "2024-01-02T09:00:00Z", Minutes: 40, Km: 1.5, Type: 1},
		},
		Flow:       []FlowStep{{Workout: 10, Achievements: []int64{1}}},
		Assertions: []Assertion{{Type: AssertEventCount, Event: "AchievementCreated", Count: 0}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, StatusError, result.Trace[0].Status)
	assert.Equal(t, "PERIOD_NOT_FOUND", result.Trace[0].Error)
}

func TestRun_MissingCatalog(t *testing.T) {
	scenario := &Scenario{
		Name:       "no_catalog",
		Catalog:    filepath.Join(t.TempDir(), "missing.cue"),
		Flow:       []FlowStep{{Workout: 1}},
		Assertions: []Assertion{{Type: AssertEventCount, Event: "AchievementCreated"}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}

func TestLoadScenario_ResolvesCatalogRelativeToFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/platinum.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "catalogs", "platinum.cue"), scenario.Catalog)
	assert.Len(t, scenario.Workouts, 3)
	assert.True(t, scenario.Workouts[1].Deferred)
	require.NotNil(t, scenario.Flow[2].Expect)
	assert.NotNil(t, scenario.Flow[2].Expect.Events)
	assert.Empty(t, scenario.Flow[2].Expect.Events)
}

func TestLoadScenario_Invalid(t *testing.T) {
	catalogPath, err := filepath.Abs(testCatalog)
	require.NoError(t, err)

	header := "name: bad\ndescription: \"bad\"\ncatalog: " + catalogPath + "\n"
	workouts := "workouts:\n  - {id: 1, user: 7, period: 1, start: \"2024-01-02T09:00:00Z\", minutes: 10, type: 1}\n"
	flow := "flow:\n  - {workout: 1, achievements: [1]}\n"
	assertions := "assertions:\n  - {type: event_count, event: AchievementCreated, count: 0}\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    header + workouts + flow + assertions + "assertion: []\n",
			wantErr: "field assertion not found",
		},
		{
			name:    "missing name",
			yaml:    "description: x\ncatalog: " + catalogPath + "\n" + flow + assertions,
			wantErr: "name is required",
		},
		{
			name:    "missing catalog file",
			yaml:    "name: x\ndescription: x\ncatalog: nope.cue\n" + flow + assertions,
			wantErr: "catalog not found",
		},
		{
			name:    "empty flow",
			yaml:    header + workouts + "flow: []\n" + assertions,
			wantErr: "flow list is required",
		},
		{
			name:    "no assertions",
			yaml:    header + workouts + flow,
			wantErr: "assertions list is required",
		},
		{
			name:    "bad workout start",
			yaml:    header + "workouts:\n  - {id: 1, user: 7, period: 1, start: \"yesterday\", minutes: 10, type: 1}\n" + flow + assertions,
			wantErr: "workouts[0]: start",
		},
		{
			name:    "duplicate workout",
			yaml:    header + "workouts:\n  - {id: 1, user: 7, period: 1, start: \"2024-01-02T09:00:00Z\", type: 1}\n  - {id: 1, user: 7, period: 1, start: \"2024-01-02T09:00:00Z\", type: 1}\n" + flow + assertions,
			wantErr: "duplicate id 1",
		},
		{
			name:    "outside workout without user",
			yaml:    header + workouts + "flow:\n  - {workout: 2, achievements: [1]}\n" + assertions,
			wantErr: "user and period are required for workout 2",
		},
		{
			name:    "unknown status",
			yaml:    header + workouts + "flow:\n  - {workout: 1, achievements: [1], expect: {status: done}}\n" + assertions,
			wantErr: `unknown status "done"`,
		},
		{
			name:    "error code without error status",
			yaml:    header + workouts + "flow:\n  - {workout: 1, achievements: [1], expect: {status: noop, error: X}}\n" + assertions,
			wantErr: "error is only valid",
		},
		{
			name:    "unknown assertion",
			yaml:    header + workouts + flow + "assertions:\n  - {type: final_state}\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "progress without quantity",
			yaml:    header + workouts + flow + "assertions:\n  - {type: progress, user: 7, period: 1, achievement: 2}\n",
			wantErr: "quantity is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindScenarios_Filter(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "plat*")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], "platinum.yaml"))

	_, err = FindScenarios("testdata/scenarios", "[")
	require.Error(t, err)

	_, err = FindScenarios("testdata/missing", "")
	require.Error(t, err)
}

func quantity(n int64) *int64 { return &n }

func TestEventAssertions(t *testing.T) {
	events := []achievement.Event{
		{Type: achievement.EventAchievementCreated, AchievementID: 1},
		{Type: achievement.EventProgressCreated, AchievementID: 2, Quantity: quantity(1500)},
		{Type: achievement.EventProgressUpdated, AchievementID: 2, Quantity: quantity(1800)},
	}

	t.Run("contains", func(t *testing.T) {
		assert.NoError(t, assertEventContains(events, Assertion{Event: "AchievementCreated"}))
		assert.NoError(t, assertEventContains(events, Assertion{Event: "AchievementProgressUpdated", Achievement: 2, Quantity: quantity(1800)}))

		err := assertEventContains(events, Assertion{Event: "AchievementProgressUpdated", Quantity: quantity(2000)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AchievementProgressUpdated with quantity 2000")
		assert.Contains(t, err.Error(), "[3] AchievementProgressUpdated achievement=2 quantity=1800")
	})

	t.Run("count", func(t *testing.T) {
		assert.NoError(t, assertEventCount(events, Assertion{Event: "AchievementCreated", Count: 1}))
		assert.NoError(t, assertEventCount(events, Assertion{Event: "AchievementPlatinumCreated", Count: 0}))

		err := assertEventCount(events, Assertion{Event: "AchievementCreated", Count: 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 occurrences")
	})

	t.Run("order", func(t *testing.T) {
		assert.NoError(t, assertEventOrder(events, Assertion{Events: []string{"AchievementCreated", "AchievementProgressUpdated"}}))

		err := assertEventOrder(events, Assertion{Events: []string{"AchievementProgressUpdated", "AchievementCreated"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "should be before")

		err = assertEventOrder(events, Assertion{Events: []string{"AchievementPlatinumCreated"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing event: AchievementPlatinumCreated")
	})
}

func TestEvaluateAssertions_NeedsStoreForState(t *testing.T) {
	errs := EvaluateAssertions(t.Context(), NewResult(), []Assertion{
		{Type: AssertHolds, User: 7, Period: 1},
		{Type: "bogus"},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "requires database context")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestSnapshot_OmitsVolatileFields(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, StepTrace{
		Step:      1,
		WorkoutID: 10,
		RunID:     "run-1",
		Status:    "processed",
		Events: []achievement.Event{
			{ID: "abc", Type: achievement.EventProgressCreated, AchievementID: 2, UserID: 7, PeriodID: 1, WorkoutID: 10, Quantity: quantity(5), UserAchievementID: 44},
		},
	})

	data, err := Snapshot("snap", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"snap","trace":[{"events":[{"achievementId":2,"quantity":5,"type":"AchievementProgressCreated","workoutId":10}],"run_id":"run-1","status":"processed","step":1,"workout_id":10}]}`,
		string(data))
}
