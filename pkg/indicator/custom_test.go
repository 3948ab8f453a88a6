package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVWAPRolling(t *testing.T) {
	high := []float64{11, 12, 13}
	low := []float64{9, 10, 11}
	closes := []float64{10, 11, 12}
	volume := []float64{100, 300, 100}

	out := VWAP(high, low, closes, volume, 2)
	require.True(t, math.IsNaN(out[0]))
	require.InDelta(t, (10*100+11*300)/400.0, out[1], 1e-9)
	require.InDelta(t, (11*300+12*100)/400.0, out[2], 1e-9)
}

func TestSuperTrendDirection(t *testing.T) {
	bars := makeBars("UP", 40)
	high, low, closes := make([]float64, 40), make([]float64, 40), make([]float64, 40)
	for i := range bars {
		price := 100 + float64(i)
		high[i], low[i], closes[i] = price+1, price-1, price+0.5
	}

	value, direction := SuperTrend(high, low, closes, 10, 3)
	require.True(t, math.IsNaN(direction[5]))
	require.Equal(t, 1.0, direction[39])
	require.Less(t, value[39], closes[39])
}

func TestSupportBelow(t *testing.T) {
	low := []float64{10, 9, 8, 9, 10, 11, 10, 9.5, 10, 11, 12}

	require.Equal(t, []int{2, 7}, FractalLows(low, 2))

	support, ok := SupportBelow(low, 11, 50, 2)
	require.True(t, ok)
	require.Equal(t, 9.5, support)

	support, ok = SupportBelow(low, 9, 50, 2)
	require.True(t, ok)
	require.Equal(t, 8.0, support)

	_, ok = SupportBelow(low, 7, 50, 2)
	require.False(t, ok)
}

func TestSqueezeAndRatio(t *testing.T) {
	on := Squeeze([]float64{10, 12}, []float64{8, 6}, []float64{11, 11}, []float64{7, 7})
	require.Equal(t, []float64{1, 0}, on)

	ratio := Ratio([]float64{1, 2}, []float64{0, 4})
	require.True(t, math.IsNaN(ratio[0]))
	require.Equal(t, 0.5, ratio[1])
}
