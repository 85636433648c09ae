package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() Definition {
	return Definition{
		ID:                   1,
		Name:                 "Run 5k",
		Active:               true,
		PeriodCondition:      SamePeriod,
		QuantityUnit:         UnitKM,
		QuantityNeeded:       5,
		WorkoutTypeCondition: AnyOf,
		Level:                LevelBronze,
		WorkoutTypeIDs:       []int64{1},
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		wantErr string
	}{
		{"valid", func(*Definition) {}, ""},
		{"zero id", func(d *Definition) { d.ID = 0 }, "id must be positive"},
		{"unknown period", func(d *Definition) { d.PeriodCondition = "sameYear" }, "unknown period condition"},
		{"unknown type condition", func(d *Definition) { d.WorkoutTypeCondition = "someOf" }, "unknown workout type condition"},
		{"zero quantity", func(d *Definition) { d.QuantityNeeded = 0 }, "quantity needed must be positive"},
		{"unknown level", func(d *Definition) { d.Level = 9 }, "unknown level"},
		{"unknown frequency", func(d *Definition) { d.Frequency = "year" }, "unknown frequency"},
		{"unknown frequency condition", func(d *Definition) { d.FrequencyCondition = "some" }, "unknown frequency condition"},
		{"anyOf without types", func(d *Definition) { d.WorkoutTypeIDs = nil }, "needs at least one workout type"},
		{"exclusiveAny without types", func(d *Definition) {
			d.WorkoutTypeCondition = ExclusiveAny
			d.WorkoutTypeIDs = nil
		}, ""},
		{"platinum without quantity", func(d *Definition) {
			d.Level = LevelPlatinum
			d.QuantityNeeded = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)
			err := def.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseNames(t *testing.T) {
	unit, err := ParseQuantityUnit("hour")
	require.NoError(t, err)
	assert.Equal(t, UnitHour, unit)
	assert.Equal(t, "meter", UnitMeter.String())
	assert.Equal(t, "unit(5)", QuantityUnit(5).String())

	_, err = ParseQuantityUnit("mile")
	assert.Error(t, err)

	level, err := ParseLevel("platinum")
	require.NoError(t, err)
	assert.Equal(t, LevelPlatinum, level)
	assert.Equal(t, "gold", LevelGold.String())

	_, err = ParseLevel("diamond")
	assert.Error(t, err)
}
