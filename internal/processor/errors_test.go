package processor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("no rows")

	err := newPeriodNotFound(7, 3, cause)
	assert.Equal(t, "PERIOD_NOT_FOUND: period 3 not found or inactive (user=7, period=3): no rows", err.Error())
	assert.ErrorIs(t, err, cause)

	err = newInvalidInput(cause)
	assert.Equal(t, "INVALID_INPUT: event failed validation: no rows", err.Error())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		permanent bool
	}{
		{"period", newPeriodNotFound(1, 1, nil), true, false},
		{"workout", newWorkoutNotFound(1, 1, 5, nil), true, false},
		{"platinum", newPlatinumNotFound(1, 1, nil), true, true},
		{"invalid input", newInvalidInput(errors.New("bad")), false, true},
		{"wrapped platinum", fmt.Errorf("run: %w", newPlatinumNotFound(1, 1, nil)), true, true},
		{"plain", errors.New("boom"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.permanent, IsPermanent(tt.err))
		})
	}
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("run-1", "run-2")
	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
