package achievement

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Input is the processing event delivered for one recorded workout.
type Input struct {
	AchievementIDs []int64   `json:"achievementIds"`
	WorkoutDate    time.Time `json:"workoutDate"`
	UserID         int64     `json:"userId"`
	PeriodID       int64     `json:"periodId"`
	WorkoutID      int64     `json:"workoutId"`
}

// DecodeInput parses an input event. Unknown fields are rejected.
func DecodeInput(data []byte) (Input, error) {
	var in Input
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Input{}, fmt.Errorf("decode input: %w", err)
	}
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	in.WorkoutDate = in.WorkoutDate.UTC()
	return in, nil
}

// Validate checks the fields every handler relies on.
func (in Input) Validate() error {
	var errs []error
	if in.UserID <= 0 {
		errs = append(errs, errors.New("userId must be positive"))
	}
	if in.PeriodID <= 0 {
		errs = append(errs, errors.New("periodId must be positive"))
	}
	if in.WorkoutID <= 0 {
		errs = append(errs, errors.New("workoutId must be positive"))
	}
	if in.WorkoutDate.IsZero() {
		errs = append(errs, errors.New("workoutDate is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

// LockKey is the per-user mutual exclusion key.
func (in Input) LockKey() string {
	return UserLockKey(in.UserID)
}

// UserLockKey formats the lock key for a user id.
func UserLockKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
