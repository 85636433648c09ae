package processor

import (
	"errors"
	"fmt"
)

// Error is a processing failure the transport can classify.
//
// Not-found errors come from catalog or workout configuration that does not
// match the event. Lock contention is never an Error; it is reported as
// StatusConflict.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ErrorCode is the stable external code some categories carry.
	ErrorCode string

	UserID   int64
	PeriodID int64

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes processing errors.
type ErrorCode string

const (
	// ErrCodePeriodNotFound indicates the period is missing or inactive.
	ErrCodePeriodNotFound ErrorCode = "PERIOD_NOT_FOUND"

	// ErrCodeWorkoutNotFound indicates the referenced workout is missing.
	ErrCodeWorkoutNotFound ErrorCode = "WORKOUT_NOT_FOUND"

	// ErrCodePlatinumNotFound indicates the catalog has no active platinum definition.
	ErrCodePlatinumNotFound ErrorCode = "PLATINUM_NOT_FOUND"

	// ErrCodeInvalidInput indicates the event failed validation.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// PlatinumErrorCode is the external code reported with ErrCodePlatinumNotFound.
const PlatinumErrorCode = "USR-AP-0001"

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.UserID != 0 {
		msg = fmt.Sprintf("%s (user=%d, period=%d)", msg, e.UserID, e.PeriodID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a period, workout or platinum lookup
// failure. Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case ErrCodePeriodNotFound, ErrCodeWorkoutNotFound, ErrCodePlatinumNotFound:
			return true
		}
	}
	return false
}

// IsPermanent reports whether retrying err cannot succeed without an
// operator changing the catalog or the event itself.
//
// Missing periods and workouts are not permanent: the workout row may not be
// visible yet when the event arrives.
func IsPermanent(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodePlatinumNotFound || pe.Code == ErrCodeInvalidInput
	}
	return false
}

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeInvalidInput
	}
	return false
}

func newPeriodNotFound(userID, periodID int64, err error) *Error {
	return &Error{
		Code:     ErrCodePeriodNotFound,
		Message:  fmt.Sprintf("period %d not found or inactive", periodID),
		UserID:   userID,
		PeriodID: periodID,
		Err:      err,
	}
}

func newWorkoutNotFound(userID, periodID, workoutID int64, err error) *Error {
	return &Error{
		Code:     ErrCodeWorkoutNotFound,
		Message:  fmt.Sprintf("workout %d not found", workoutID),
		UserID:   userID,
		PeriodID: periodID,
		Err:      err,
	}
}

func newPlatinumNotFound(userID, periodID int64, err error) *Error {
	return &Error{
		Code:      ErrCodePlatinumNotFound,
		Message:   "Platinum achievement not found",
		ErrorCode: PlatinumErrorCode,
		UserID:    userID,
		PeriodID:  periodID,
		Err:       err,
	}
}

func newInvalidInput(err error) *Error {
	return &Error{
		Code:    ErrCodeInvalidInput,
		Message: "event failed validation",
		Err:     err,
	}
}
