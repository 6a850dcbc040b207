package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"exact", 12.34, 12.34},
		{"round down", 12.344, 12.34},
		{"round up", 12.346, 12.35},
		{"half rounds to even, low", 1.125, 1.12},
		{"half rounds to even, high", 1.375, 1.38},
		{"negative", -5.0, -5.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Round2(tt.in), 0.0001)
		})
	}
}

func TestNonNegative(t *testing.T) {
	assert.Equal(t, 0.0, NonNegative(-5))
	assert.Equal(t, 5.0, NonNegative(5))
	assert.Equal(t, 0.0, NonNegative(0))
}
