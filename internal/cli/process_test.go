package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firstKMEvent = `{"userId":7,"periodId":1,"workoutId":10,"workoutDate":"2024-01-02T09:40:00Z","achievementIds":[1]}`

func TestProcessCommand_UnlocksThenRedelivers(t *testing.T) {
	opts := newTestOptions(t, "json")
	seedTestDB(t, opts)
	insertWorkout(t, opts, 10, "2024-01-02T09:00:00Z", 1.5)

	out, err := execute(NewProcessCommand(opts), "--event", firstKMEvent)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "processed", data["status"])
	assert.NotEmpty(t, data["run_id"])
	events := data["events"].([]any)
	require.Len(t, events, 1)
	event := events[0].(map[string]any)
	assert.Equal(t, "AchievementCreated", event["type"])
	assert.Equal(t, float64(1), event["achievementId"])

	out, err = execute(NewProcessCommand(opts), "--event", firstKMEvent)
	require.NoError(t, err)
	data = decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, "already_processed", data["status"])
	assert.Empty(t, data["events"])
}

func TestProcessCommand_Stdin(t *testing.T) {
	opts := newTestOptions(t, "text")
	seedTestDB(t, opts)
	insertWorkout(t, opts, 10, "2024-01-02T09:00:00Z", 1.5)

	cmd := NewProcessCommand(opts)
	cmd.SetIn(strings.NewReader(firstKMEvent))
	out, err := execute(cmd, "--event", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: processed")
	assert.Contains(t, out, "AchievementCreated achievement=1")
}

func TestProcessCommand_WorkoutNotFound(t *testing.T) {
	opts := newTestOptions(t, "json")
	seedTestDB(t, opts)

	out, err := execute(NewProcessCommand(opts), "--event", firstKMEvent)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "WORKOUT_NOT_FOUND", resp.Error.Code)
}

func TestProcessCommand_InvalidEvent(t *testing.T) {
	tests := []struct {
		name  string
		event string
	}{
		{"malformed", `{"userId":`},
		{"unknown field", `{"userId":7,"periodId":1,"workoutId":10,"workoutDate":"2024-01-02T09:40:00Z","colour":"red"}`},
		{"missing user", `{"periodId":1,"workoutId":10,"workoutDate":"2024-01-02T09:40:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newTestOptions(t, "json")
			out, err := execute(NewProcessCommand(opts), "--event", tt.event)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
		})
	}
}

func TestProcessCommand_RequiresEvent(t *testing.T) {
	_, err := execute(NewProcessCommand(newTestOptions(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "event" not set`)
}
