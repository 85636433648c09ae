package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIRValueSealed(t *testing.T) {
	values := []IRValue{IRString("a"), IRInt(1), IRBool(true), IRArray{}, IRObject{}}
	assert.Len(t, values, 5)
}

func TestSortedKeys(t *testing.T) {
	obj := IRObject{"zebra": IRInt(1), "alpha": IRInt(2), "Beta": IRInt(3), "": IRInt(4)}
	assert.Equal(t, []string{"", "Beta", "alpha", "zebra"}, obj.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a", 0},
		{"a", "ab", -1},
		{"\U00010000", "\uE000", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, compareKeysRFC8785(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
