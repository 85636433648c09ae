package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInput(t *testing.T) {
	data := []byte(`{"achievementIds":[1,2],"workoutDate":"2024-01-03T09:00:00-03:00","userId":7,"periodId":1,"workoutId":42}`)

	in, err := DecodeInput(data)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, in.AchievementIDs)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), in.WorkoutDate)
	assert.Equal(t, time.UTC, in.WorkoutDate.Location())
	assert.Equal(t, "user:7", in.LockKey())
}

func TestDecodeInputRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"malformed", `{`, "decode input"},
		{"unknown field", `{"userId":1,"extra":true}`, "decode input"},
		{"missing ids", `{"workoutDate":"2024-01-03T09:00:00Z"}`, "userId must be positive"},
		{"missing date", `{"userId":1,"periodId":1,"workoutId":1}`, "workoutDate is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInput([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
