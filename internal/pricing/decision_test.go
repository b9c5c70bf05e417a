package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		current  float64
		target   *float64
		want     Decision
	}{
		{"no change no target", 100, 100, nil, Decision{}},
		{"drop no target", 100, 95, nil, Decision{PriceChanged: true}},
		{"rise no target", 100, 120, nil, Decision{PriceChanged: true}},
		{"drop above target", 100, 95, fptr(90), Decision{PriceChanged: true}},
		{"drop below target", 95, 85, fptr(90), Decision{PriceChanged: true, TargetReached: true}},
		{"drop exactly to target", 95, 90, fptr(90), Decision{PriceChanged: true, TargetReached: true}},
		{"no change at target", 90, 90, fptr(90), Decision{TargetReached: true}},
		{"first observation", 0, 50, fptr(60), Decision{PriceChanged: true, TargetReached: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Decide(tt.previous, tt.current, tt.target))
		})
	}
}

func TestDropPercent(t *testing.T) {
	require.InDelta(t, 10.0, DropPercent(100, 90), 1e-9)
	require.InDelta(t, 50.0, DropPercent(200, 100), 1e-9)
	require.Zero(t, DropPercent(0, 90))
	require.Zero(t, DropPercent(-5, 90))
	require.InDelta(t, -20.0, DropPercent(100, 120), 1e-9)
}

func TestSavings(t *testing.T) {
	require.InDelta(t, 10.0, Savings(100, 90), 1e-9)
	require.Zero(t, Savings(0, 90))
	require.InDelta(t, -20.0, Savings(100, 120), 1e-9)
}
