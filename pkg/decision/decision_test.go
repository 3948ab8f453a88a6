package decision

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/raykavin/tradeplan/pkg/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	results []Result
}

func (r *recorder) ObserveResult(result Result) {
	r.results = append(r.results, result)
}

func makeBars(symbol string, n int) []core.Bar {
	bars := make([]core.Bar, n)
	price := 100.0
	for i := range bars {
		drift := 0.8*math.Sin(float64(i)/5) + 0.05
		open := price
		closePrice := price + drift
		bars[i] = core.Bar{
			Symbol: symbol,
			Time:   start.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, closePrice) + 0.5,
			Low:    math.Min(open, closePrice) - 0.5,
			Close:  closePrice,
			Volume: 1000 + float64(i%7)*100,
		}
		price = closePrice
	}
	return bars
}

func bullishSnapshot() core.Snapshot {
	return core.Snapshot{
		Symbol:   "NVDA",
		Time:     start,
		Bar:      core.Bar{Symbol: "NVDA", Time: start, Open: 100, High: 110, Low: 100, Close: 110, Volume: 2000},
		Previous: core.Bar{Symbol: "NVDA", Time: start.AddDate(0, 0, -1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		Values: map[string]float64{
			indicator.SMA20:          100,
			indicator.SMA50:          95,
			indicator.SMA200:         90,
			indicator.EMA9:           105,
			indicator.EMA21:          102,
			indicator.MACDHist:       1,
			indicator.ADXValue:       30,
			indicator.PlusDIValue:    30,
			indicator.MinusDIValue:   10,
			indicator.SuperTrendDir:  1,
			indicator.RSIValue:       60,
			indicator.StochK:         70,
			indicator.StochD:         60,
			indicator.ROCValue:       3,
			indicator.WilliamsRValue: -50,
			indicator.MFIValue:       60,
			indicator.VolumeRatio:    2,
			indicator.OBVValue:       1000,
			indicator.CMFValue:       0.1,
			indicator.NATRValue:      2,
			indicator.SqueezeOn:      1,
			indicator.DonchianPrior:  108,
			indicator.ATRValue:       2.2,
		},
		PrevValues: map[string]float64{
			indicator.MACDHist: 0.5,
			indicator.OBVValue: 900,
		},
	}
}

func newPipeline(t *testing.T, options ...Option) *Pipeline {
	t.Helper()
	cfg := risk.DefaultConfig()
	cfg.TP2ATR = 3.5
	riskEngine, err := risk.NewEngine(cfg, risk.WithCostModel(core.CostModel{}))
	require.NoError(t, err)
	return NewPipeline(indicator.NewEngine(nil), scoring.NewScorer(), riskEngine, options...)
}

func TestDecide(t *testing.T) {
	pipeline := newPipeline(t)
	account := pipeline.Risk().NewAccount(100000, start)

	t.Run("accepted", func(t *testing.T) {
		result := pipeline.Decide(bullishSnapshot(), nil, "Semis", account, nil)
		require.NoError(t, result.Err)
		require.True(t, result.Accepted())
		assert.Equal(t, core.StrategyMomentumBreakout, result.Plan.Strategy)
		assert.Equal(t, "Semis", result.Plan.Sector)
		assert.GreaterOrEqual(t, result.Plan.RewardRisk, 2.0)
		assert.Empty(t, result.Reason())
	})

	t.Run("halted", func(t *testing.T) {
		halted := account
		halted.State = core.StateHalted

		result := pipeline.Decide(bullishSnapshot(), nil, "Semis", halted, nil)
		assert.ErrorIs(t, result.Err, core.ErrTradingHalted)
		assert.NotNil(t, result.Candidate)
		assert.Nil(t, result.Plan)
		assert.Equal(t, "halted", result.Reason())
	})

	t.Run("halted below threshold", func(t *testing.T) {
		halted := account
		halted.State = core.StateHalted
		snapshot := bullishSnapshot()
		snapshot.Values = map[string]float64{indicator.ATRValue: 2}

		result := pipeline.Decide(snapshot, nil, "", halted, nil)
		assert.ErrorIs(t, result.Err, core.ErrTradingHalted)
		assert.Equal(t, "halted", result.Reason())
	})

	t.Run("below threshold", func(t *testing.T) {
		snapshot := bullishSnapshot()
		snapshot.Values = map[string]float64{indicator.ATRValue: 2}

		result := pipeline.Decide(snapshot, nil, "", account, nil)
		assert.ErrorIs(t, result.Err, scoring.ErrBelowThreshold)
		assert.Nil(t, result.Plan)
	})

	t.Run("already accepted this cycle", func(t *testing.T) {
		accepted := []core.TradePlan{{Symbol: "NVDA", Entry: 110, Shares: 1}}

		result := pipeline.Decide(bullishSnapshot(), nil, "", account, accepted)
		assert.ErrorIs(t, result.Err, core.ErrRiskLimitExceeded)
	})
}

func TestCycle(t *testing.T) {
	observer := &recorder{}
	pipeline := newPipeline(t, WithObserver(observer), WithWorkers(2))
	account := pipeline.Risk().NewAccount(100000, start)

	broken := makeBars("BRKN", 120)
	broken[60].Volume = 0

	instruments := []Instrument{
		{Symbol: "NEW", Bars: makeBars("NEW", 10)},
		{Symbol: "BRKN", Bars: broken},
		{Symbol: "OK", Bars: makeBars("OK", 120)},
	}

	results, err := pipeline.Cycle(context.Background(), instruments, account)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "NEW", results[0].Symbol)
	assert.ErrorIs(t, results[0].Err, core.ErrInsufficientHistory)
	assert.Nil(t, results[0].Candidate)
	assert.Nil(t, results[0].Plan)

	assert.Equal(t, "BRKN", results[1].Symbol)
	assert.ErrorIs(t, results[1].Err, core.ErrInvalidBar)

	assert.Equal(t, "OK", results[2].Symbol)
	assert.NotNil(t, results[2].Candidate)
	assert.Equal(t, start.AddDate(0, 0, 119), results[2].Time)

	require.Len(t, observer.results, 3)
	for i := range results {
		assert.Equal(t, results[i].Symbol, observer.results[i].Symbol)
	}
}

func TestCycleForeignSymbol(t *testing.T) {
	pipeline := newPipeline(t)
	account := pipeline.Risk().NewAccount(100000, start)

	instruments := []Instrument{
		{Symbol: "AAA", Bars: makeBars("", 120)},
		{Symbol: "BBB", Bars: makeBars("OK", 120)},
		{Symbol: "OK", Bars: makeBars("OK", 120)},
	}

	results, err := pipeline.Cycle(context.Background(), instruments, account)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, symbol := range []string{"AAA", "BBB"} {
		assert.Equal(t, symbol, results[i].Symbol)
		assert.ErrorIs(t, results[i].Err, core.ErrInvalidBar)
		assert.Equal(t, "invalid_bar", results[i].Reason())
		assert.Equal(t, start.AddDate(0, 0, 119), results[i].Time)
	}

	assert.Equal(t, "OK", results[2].Symbol)
	assert.NotNil(t, results[2].Candidate)
}

func TestCycleCancelled(t *testing.T) {
	pipeline := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Cycle(ctx, []Instrument{{Symbol: "OK", Bars: makeBars("OK", 120)}}, pipeline.Risk().NewAccount(1000, start))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTail(t *testing.T) {
	bars := makeBars("X", 100)
	assert.Len(t, Tail(bars, 60), 60)
	assert.Equal(t, bars[99], Tail(bars, 60)[59])
	assert.Len(t, Tail(bars[:10], 60), 10)
}
