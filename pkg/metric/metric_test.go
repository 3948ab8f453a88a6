package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeRatios(t *testing.T) {
	values := []float64{10, -5, 20, -5}

	assert.Equal(t, 3.0, ProfitFactor(values))
	assert.Equal(t, 3.0, Payoff(values))
	assert.Equal(t, 10.0, ProfitFactor([]float64{1, 2}))
	assert.Equal(t, 0.0, ProfitFactor(nil))
	assert.Equal(t, 0.0, Payoff([]float64{-1}))
}

func TestMaxDrawdown(t *testing.T) {
	equity := []float64{100, 120, 90, 130, 104}
	assert.InDelta(t, 0.25, MaxDrawdown(equity), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 2, 3}))

	assert.InDelta(t, 0.19, CompoundedDrawdown([]float64{0.1, -0.1, -0.1, 0.5}), 1e-12)
}

func TestSharpeAndSortino(t *testing.T) {
	returns := Returns([]float64{100, 101, 100, 102, 101})
	require.Len(t, returns, 4)

	sharpe := Sharpe(returns)
	sortino := Sortino(returns)
	assert.Greater(t, sharpe, 0.0)
	assert.Greater(t, sortino, sharpe)

	assert.Equal(t, 0.0, Sharpe([]float64{0.01, 0.01}))
	assert.Equal(t, 0.0, Sortino([]float64{0.01, 0.02}))
	assert.True(t, math.IsInf(CoefficientOfVariation([]float64{1, -1}), 1))
}

func TestBootstrapIsSeeded(t *testing.T) {
	values := []float64{0.02, -0.01, 0.03, 0.01, -0.02, 0.04, 0.00, 0.01}

	first := Bootstrap(values, Mean, 500, 0.95, 42)
	second := Bootstrap(values, Mean, 500, 0.95, 42)
	require.Equal(t, first, second)

	assert.Less(t, first.Lower, first.Upper)
	assert.InDelta(t, Mean(values), first.Mean, 0.005)
	assert.True(t, first.Contains(Mean(values)))
	assert.Equal(t, 0.95, first.Confidence)
	assert.Equal(t, BootstrapInterval{}, Bootstrap(nil, Mean, 10, 0.95, 1))
}
