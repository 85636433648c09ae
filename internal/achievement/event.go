package achievement

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/achievements/internal/ir"
)

// EventType names a published outcome.
type EventType string

const (
	EventAchievementCreated EventType = "AchievementCreated"
	EventProgressCreated    EventType = "AchievementProgressCreated"
	EventProgressUpdated    EventType = "AchievementProgressUpdated"
	EventPlatinumCreated    EventType = "AchievementPlatinumCreated"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventAchievementCreated, EventProgressCreated, EventProgressUpdated, EventPlatinumCreated:
		return true
	}
	return false
}

// Event is one outcome published after a successful commit.
//
// Created and platinum events carry AchievedAt and LevelID; progress events
// carry Quantity. ID is derived from the other fields with EventID and is
// stable across redeliveries of the same workout.
type Event struct {
	ID                string     `json:"id"`
	Type              EventType  `json:"type"`
	AchievementID     int64      `json:"achievementId"`
	UserID            int64      `json:"userId"`
	PeriodID          int64      `json:"periodId"`
	WorkoutID         int64      `json:"workoutId,omitempty"`
	AchievedAt        *time.Time `json:"achievedAt,omitempty"`
	LevelID           Level      `json:"levelId,omitempty"`
	Quantity          *int64     `json:"quantity,omitempty"`
	UserAchievementID int64      `json:"userAchievementId,omitempty"`
}

// NewCreatedEvent builds an AchievementCreated event.
func NewCreatedEvent(def Definition, userID, periodID, workoutID int64, achievedAt time.Time) Event {
	at := achievedAt.UTC()
	return Event{
		Type:          EventAchievementCreated,
		AchievementID: def.ID,
		UserID:        userID,
		PeriodID:      periodID,
		WorkoutID:     workoutID,
		AchievedAt:    &at,
		LevelID:       def.Level,
	}
}

// NewProgressEvent builds a progress event. existed selects Updated over Created.
func NewProgressEvent(def Definition, userID, periodID, workoutID, quantity int64, existed bool) Event {
	eventType := EventProgressCreated
	if existed {
		eventType = EventProgressUpdated
	}
	return Event{
		Type:          eventType,
		AchievementID: def.ID,
		UserID:        userID,
		PeriodID:      periodID,
		WorkoutID:     workoutID,
		Quantity:      &quantity,
	}
}

// AsPlatinum returns a copy of a created event retyped as AchievementPlatinumCreated.
func (e Event) AsPlatinum() Event {
	e.Type = EventPlatinumCreated
	e.ID = ""
	return e
}

// Payload is the canonical form of the event used for its identity.
// ID and UserAchievementID are excluded: the latter is only known after
// the insert and does not change what happened.
func (e Event) Payload() ir.IRObject {
	obj := ir.IRObject{
		"achievementId": ir.IRInt(e.AchievementID),
		"userId":        ir.IRInt(e.UserID),
		"periodId":      ir.IRInt(e.PeriodID),
	}
	if e.WorkoutID != 0 {
		obj["workoutId"] = ir.IRInt(e.WorkoutID)
	}
	if e.AchievedAt != nil {
		obj["achievedAt"] = ir.IRTime(*e.AchievedAt)
	}
	if e.LevelID != 0 {
		obj["levelId"] = ir.IRInt(int64(e.LevelID))
	}
	if e.Quantity != nil {
		obj["quantity"] = ir.IRInt(*e.Quantity)
	}
	return obj
}

// WithID returns the event with its content-addressed ID filled in.
func (e Event) WithID() (Event, error) {
	id, err := ir.EventID(string(e.Type), e.Payload())
	if err != nil {
		return Event{}, fmt.Errorf("event %s for achievement %d: %w", e.Type, e.AchievementID, err)
	}
	e.ID = id
	return e, nil
}

// DecodeEvent parses an event previously encoded with json.Marshal.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if !e.Type.Valid() {
		return Event{}, fmt.Errorf("decode event: unknown type %q", e.Type)
	}
	return e, nil
}
