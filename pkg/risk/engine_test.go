package risk

import (
	"testing"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, WithCostModel(core.CostModel{}))
	require.NoError(t, err)
	return engine
}

func candidate(symbol string, close, atr float64) core.ScoredCandidate {
	bar := core.Bar{Symbol: symbol, Time: at, Open: close, High: close, Low: close, Close: close, Volume: 1000}
	return core.ScoredCandidate{
		Symbol:   symbol,
		Time:     at,
		Score:    82,
		Tier:     core.TierStrong,
		Strategy: core.StrategyPick{Name: core.StrategyMomentumBreakout},
		Snapshot: core.Snapshot{
			Symbol: symbol,
			Time:   at,
			Bar:    bar,
			Values: map[string]float64{indicator.ATRValue: atr},
		},
	}
}

// barsWithSupport returns 30 bars whose only fractal low is support
func barsWithSupport(symbol string, support float64) []core.Bar {
	bars := make([]core.Bar, 30)
	for i := range bars {
		low := 99.0
		if i == 12 {
			low = support
		}
		bars[i] = core.Bar{Symbol: symbol, Time: at.AddDate(0, 0, i-29), Open: 100, High: 101, Low: low, Close: 100, Volume: 1000}
	}
	return bars
}

func TestLevels(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("atr stop above support", func(t *testing.T) {
		lows := make([]float64, 0, 30)
		for _, bar := range barsWithSupport("X", 92) {
			lows = append(lows, bar.Low)
		}

		levels, err := cfg.Levels(100, 5, lows, core.HoldingSwing)
		require.NoError(t, err)
		assert.InDelta(t, 92.5, levels.Stop, 1e-9)
		assert.InDelta(t, 92*0.995, levels.SupportStop, 1e-9)
		assert.InDelta(t, 107.5, levels.TP1, 1e-9)
		assert.InDelta(t, 115, levels.TP2, 1e-9)
	})

	t.Run("support tighter than atr", func(t *testing.T) {
		lows := make([]float64, 0, 30)
		for _, bar := range barsWithSupport("X", 95) {
			lows = append(lows, bar.Low)
		}

		levels, err := cfg.Levels(100, 5, lows, core.HoldingSwing)
		require.NoError(t, err)
		assert.InDelta(t, 95*0.995, levels.Stop, 1e-9)
	})

	t.Run("short history falls back to atr", func(t *testing.T) {
		levels, err := cfg.Levels(100, 5, []float64{99, 95, 99, 99, 99}, core.HoldingSwing)
		require.NoError(t, err)
		assert.Zero(t, levels.SupportStop)
		assert.InDelta(t, 92.5, levels.Stop, 1e-9)
	})

	t.Run("intraday multiplier", func(t *testing.T) {
		levels, err := cfg.Levels(100, 5, nil, core.HoldingIntraday)
		require.NoError(t, err)
		assert.InDelta(t, 95, levels.Stop, 1e-9)
	})

	t.Run("undefined atr", func(t *testing.T) {
		_, err := cfg.Levels(100, 0, nil, core.HoldingSwing)
		assert.ErrorIs(t, err, core.ErrInsufficientHistory)
	})
}

func TestPositionSize(t *testing.T) {
	assert.Equal(t, int64(8), PositionSize(1000, 0.02, 50, 47.5))
	assert.Equal(t, int64(266), PositionSize(100000, 0.02, 100, 92.5))
	assert.Zero(t, PositionSize(1000, 0.02, 50, 50))
	assert.Zero(t, PositionSize(1000, 0, 50, 45))
	assert.Equal(t, int64(6), SharesWithin(330, 50))
}

func TestRewardRisk(t *testing.T) {
	assert.InDelta(t, 2.0, RewardRisk(100, 92.5, 115, 0), 1e-9)
	assert.Less(t, RewardRisk(100, 92.5, 115, 0.2), 2.0)
	assert.Zero(t, RewardRisk(100, 100, 115, 0))
}

func TestEngine_Plan(t *testing.T) {
	t.Run("accepts exact two to one", func(t *testing.T) {
		engine := newEngine(t, DefaultConfig())
		account := engine.NewAccount(100000, at)

		plan, err := engine.Plan(Request{Candidate: candidate("AAPL", 100, 5), Bars: barsWithSupport("AAPL", 92)}, account, nil)
		require.NoError(t, err)
		assert.InDelta(t, 92.5, plan.Stop, 1e-9)
		assert.InDelta(t, 107.5, plan.TP1, 1e-9)
		assert.InDelta(t, 115, plan.TP2, 1e-9)
		assert.InDelta(t, 2.0, plan.RewardRisk, 1e-9)
		assert.Equal(t, int64(266), plan.Shares)
		assert.Equal(t, "Unknown", plan.Sector)
		assert.Equal(t, core.StrategyMomentumBreakout, plan.Strategy)
		assert.False(t, plan.Paper)
	})

	t.Run("costs push exact two to one below minimum", func(t *testing.T) {
		engine, err := NewEngine(DefaultConfig())
		require.NoError(t, err)

		_, err = engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, engine.NewAccount(100000, at), nil)
		assert.ErrorIs(t, err, core.ErrBelowMinimumRewardRisk)
	})

	t.Run("rejects low reward risk", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TP2ATR = 2.5
		engine := newEngine(t, cfg)

		_, err := engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, engine.NewAccount(100000, at), nil)
		assert.ErrorIs(t, err, core.ErrBelowMinimumRewardRisk)
	})

	t.Run("position cap limits shares", func(t *testing.T) {
		engine := newEngine(t, DefaultConfig())

		plan, err := engine.Plan(Request{Candidate: candidate("KO", 50, 2.5), Holding: core.HoldingIntraday},
			engine.NewAccount(1000, at), nil)
		require.NoError(t, err)
		assert.InDelta(t, 47.5, plan.Stop, 1e-9)
		assert.Equal(t, int64(6), plan.Shares)
		assert.InDelta(t, 15, plan.RiskAmount, 1e-9)
	})

	t.Run("sector cap counts open positions and accepted plans", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Sectors = map[string]string{"AAPL": "Tech", "MSFT": "Tech", "NVDA": "Tech"}
		engine := newEngine(t, cfg)

		account := engine.NewAccount(100000, at).WithPosition(core.Position{
			Symbol: "MSFT", Sector: "Tech", Shares: 100, LastPrice: 250, EntryPrice: 240, Status: core.StatusOpen,
		}, at)
		accepted := []core.TradePlan{{Symbol: "NVDA", Sector: "Tech", Entry: 100, Shares: 100}}

		plan, err := engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, account, accepted)
		require.NoError(t, err)
		assert.Equal(t, "Tech", plan.Sector)
		assert.Equal(t, int64(50), plan.Shares)

		accepted = append(accepted, core.TradePlan{Symbol: "AMD", Sector: "Tech", Entry: 100, Shares: 50})
		_, err = engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, account, accepted)
		assert.ErrorIs(t, err, core.ErrRiskLimitExceeded)
	})

	t.Run("max open positions", func(t *testing.T) {
		engine := newEngine(t, DefaultConfig())

		accepted := make([]core.TradePlan, 5)
		for i := range accepted {
			accepted[i] = core.TradePlan{Symbol: string(rune('A' + i)), Entry: 10, Shares: 1}
		}

		_, err := engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, engine.NewAccount(100000, at), accepted)
		assert.ErrorIs(t, err, core.ErrRiskLimitExceeded)
	})

	t.Run("symbol already held", func(t *testing.T) {
		engine := newEngine(t, DefaultConfig())
		account := engine.NewAccount(100000, at).WithPosition(core.Position{
			Symbol: "AAPL", Shares: 1, LastPrice: 100, Status: core.StatusOpen,
		}, at)

		_, err := engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, account, nil)
		assert.ErrorIs(t, err, core.ErrRiskLimitExceeded)
	})

	t.Run("halted account", func(t *testing.T) {
		engine := newEngine(t, DefaultConfig())
		account := engine.NewAccount(100000, at)
		account.State = core.StateHalted

		_, err := engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, account, nil)
		assert.ErrorIs(t, err, core.ErrTradingHalted)
		assert.ErrorIs(t, err, core.ErrRiskLimitExceeded)
	})

	t.Run("paper only plans are flagged", func(t *testing.T) {
		engine := newEngine(t, DefaultConfig())
		account := engine.NewAccount(100000, at)
		account.State = core.StatePaperOnly
		account.RiskFraction = 0

		plan, err := engine.Plan(Request{Candidate: candidate("AAPL", 100, 5)}, account, nil)
		require.NoError(t, err)
		assert.True(t, plan.Paper)
		assert.Equal(t, int64(266), plan.Shares)
	})

	t.Run("missing atr", func(t *testing.T) {
		engine := newEngine(t, DefaultConfig())
		c := candidate("AAPL", 100, 5)
		c.Snapshot.Values = map[string]float64{}

		_, err := engine.Plan(Request{Candidate: c}, engine.NewAccount(100000, at), nil)
		assert.ErrorIs(t, err, core.ErrInsufficientHistory)
	})
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxHold = "soon"
	cfg.TrailingSource = "low"
	cfg.Drawdown.HaltMonthlyPnL = -0.01
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_hold")
	assert.Contains(t, err.Error(), "trailing_source")
	assert.Contains(t, err.Error(), "monthly limits")

	_, err = NewEngine(cfg)
	assert.Error(t, err)
}
