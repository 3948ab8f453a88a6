package strategy

import (
	"testing"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func snapshot(values, prev map[string]float64, bar core.Bar) core.Snapshot {
	bar.Symbol, bar.Time = "AAPL", at
	return core.Snapshot{
		Symbol:     "AAPL",
		Time:       at,
		Bar:        bar,
		Previous:   core.Bar{Symbol: "AAPL", Time: at.AddDate(0, 0, -1), Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
		Values:     values,
		PrevValues: prev,
	}
}

func always(name core.StrategyName) Rule {
	return Rule{
		name:    name,
		trigger: func(core.Snapshot) bool { return true },
		profile: Profile{TargetATR: 3, StopATR: 1.5, WinProbability: 0.5},
	}
}

func TestExpectedValue(t *testing.T) {
	assert.InDelta(t, 0.5*0.03-0.5*0.015, ExpectedValue(0.5, 0.03, 0.015, 0), 1e-12)
	assert.InDelta(t, 0.4*(0.06-0.002)-0.6*(0.03+0.002), ExpectedValue(0.4, 0.06, 0.03, 0.002), 1e-12)
}

func TestMomentumBreakout(t *testing.T) {
	values := map[string]float64{
		indicator.ATRValue:      2,
		indicator.DonchianPrior: 104,
		indicator.VolumeRatio:   1.8,
	}
	bar := core.Bar{Open: 101, High: 106, Low: 100, Close: 105, Volume: 1800}

	eval, ok := MomentumBreakout().Evaluate(Setup{Snapshot: snapshot(values, nil, bar), Score: 65}, core.CostModel{})
	require.True(t, ok)
	assert.InDelta(t, 6.0/105, eval.RewardPct, 1e-12)
	assert.InDelta(t, 3.0/105, eval.RiskPct, 1e-12)
	assert.InDelta(t, 0.45, eval.WinProbability, 1e-12)
	assert.Greater(t, eval.ExpectedValue, 0.0)

	values[indicator.VolumeRatio] = 1.1
	_, ok = MomentumBreakout().Evaluate(Setup{Snapshot: snapshot(values, nil, bar)}, core.CostModel{})
	assert.False(t, ok)

	delete(values, indicator.ATRValue)
	values[indicator.VolumeRatio] = 2
	_, ok = MomentumBreakout().Evaluate(Setup{Snapshot: snapshot(values, nil, bar)}, core.CostModel{})
	assert.False(t, ok, "undefined ATR can not price a trade")
}

func TestRegimeAdjustsProbability(t *testing.T) {
	values := map[string]float64{indicator.ATRValue: 2, indicator.EMA9: 101, indicator.EMA21: 100}
	prev := map[string]float64{indicator.EMA9: 99, indicator.EMA21: 100}
	bar := core.Bar{Open: 100, High: 102, Low: 99, Close: 101, Volume: 1000}

	trending, ok := EMACrossover().Evaluate(Setup{Snapshot: snapshot(values, prev, bar), Score: 65, Regime: core.RegimeTrending}, core.CostModel{})
	require.True(t, ok)
	choppy, ok := EMACrossover().Evaluate(Setup{Snapshot: snapshot(values, prev, bar), Score: 65, Regime: core.RegimeChoppy}, core.CostModel{})
	require.True(t, ok)

	assert.InDelta(t, 0.47, trending.WinProbability, 1e-12)
	assert.InDelta(t, 0.37, choppy.WinProbability, 1e-12)
}

func TestGapFill(t *testing.T) {
	values := map[string]float64{indicator.ATRValue: 2}
	gap := core.Bar{Open: 97, High: 99, Low: 96.5, Close: 98.5, Volume: 1000}

	_, ok := GapFill().Evaluate(Setup{Snapshot: snapshot(values, nil, gap)}, core.CostModel{})
	assert.True(t, ok)

	small := core.Bar{Open: 99, High: 100, Low: 98.5, Close: 99.5, Volume: 1000}
	_, ok = GapFill().Evaluate(Setup{Snapshot: snapshot(values, nil, small)}, core.CostModel{})
	assert.False(t, ok)
}

func TestSelectorRanksByExpectedValue(t *testing.T) {
	values := map[string]float64{indicator.ATRValue: 2}
	bar := core.Bar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	setup := Setup{Snapshot: snapshot(values, nil, bar), Score: 65}

	strong := always("strong")
	strong.profile.WinProbability = 0.6

	selector := NewSelector(core.CostModel{}, WithVariants(always("weak"), strong))
	best, alt, err := selector.Select(setup)
	require.NoError(t, err)
	assert.Equal(t, core.StrategyName("strong"), best.Name)
	require.NotNil(t, alt)
	assert.Equal(t, core.StrategyName("weak"), alt.Name)
}

func TestSelectorTieBreak(t *testing.T) {
	values := map[string]float64{indicator.ATRValue: 2}
	bar := core.Bar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	setup := Setup{Snapshot: snapshot(values, nil, bar), Score: 65}

	tracker := NewTracker()
	selector := NewSelector(core.CostModel{}, WithVariants(always("beta"), always("alpha")), WithTracker(tracker))

	best, _, err := selector.Select(setup)
	require.NoError(t, err)
	assert.Equal(t, core.StrategyName("alpha"), best.Name, "equal EV and drawdown fall back to the name")

	tracker.Record(core.TradeResult{Strategy: "alpha", ReturnPct: 0.05})
	tracker.Record(core.TradeResult{Strategy: "alpha", ReturnPct: -0.10})
	tracker.Record(core.TradeResult{Strategy: "beta", ReturnPct: -0.02})
	tracker.Record(core.TradeResult{Strategy: "beta", ReturnPct: -0.50, Paper: true})

	best, alt, err := selector.Select(setup)
	require.NoError(t, err)
	assert.Equal(t, core.StrategyName("beta"), best.Name)
	assert.InDelta(t, 0.02, best.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.10, alt.MaxDrawdown, 1e-12)
	assert.Equal(t, 1, tracker.Trades("beta"))
}

func TestSelectorNoQualifyingStrategy(t *testing.T) {
	values := map[string]float64{indicator.ATRValue: 2}
	bar := core.Bar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}

	losing := always("losing")
	losing.profile.WinProbability = 0.1

	selector := NewSelector(core.CostModel{}, WithVariants(losing))
	_, _, err := selector.Select(Setup{Snapshot: snapshot(values, nil, bar), Score: 65})
	require.ErrorIs(t, err, core.ErrNoQualifyingStrategy)

	_, _, err = NewSelector(core.CostModel{}).Select(Setup{Snapshot: snapshot(values, nil, bar), Score: 65})
	require.ErrorIs(t, err, core.ErrNoQualifyingStrategy, "no default variant triggers on a quiet bar")
}

func TestTrackerRestore(t *testing.T) {
	source := NewTracker()
	source.Record(core.TradeResult{Strategy: "alpha", ReturnPct: 0.05})
	source.Record(core.TradeResult{Strategy: "alpha", ReturnPct: -0.10})

	target := NewTracker()
	target.Record(core.TradeResult{Strategy: "beta", ReturnPct: 0.01})
	target.Restore(source)

	assert.Equal(t, 2, target.Trades("alpha"))
	assert.Equal(t, 0, target.Trades("beta"))
	assert.InDelta(t, source.MaxDrawdown("alpha"), target.MaxDrawdown("alpha"), 1e-12)

	target.Record(core.TradeResult{Strategy: "alpha", ReturnPct: 0.02})
	assert.Equal(t, 3, target.Trades("alpha"))
	assert.Equal(t, 2, source.Trades("alpha"))
}
