package backtest

import (
	"math"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/metric"
	"github.com/raykavin/tradeplan/pkg/optimizer"
	"github.com/samber/lo"
)

// ReturnConfidence is the level of the bootstrap interval of trade returns
const ReturnConfidence = 0.95

// Metrics summarises a replay. Trade statistics cover live trades only;
// paper trades are counted but never mixed into performance.
type Metrics struct {
	Trades      int `yaml:"trades"`
	PaperTrades int `yaml:"paper_trades"`
	Wins        int `yaml:"wins"`
	Losses      int `yaml:"losses"`

	WinRate      float64 `yaml:"win_rate"`
	ProfitFactor float64 `yaml:"profit_factor"`
	Payoff       float64 `yaml:"payoff"`
	AverageR     float64 `yaml:"average_r"`
	Expectancy   float64 `yaml:"expectancy"`

	TotalReturn    float64 `yaml:"total_return"`
	Sharpe         float64 `yaml:"sharpe"`
	Sortino        float64 `yaml:"sortino"`
	MaxDrawdown    float64 `yaml:"max_drawdown"`
	RecoveryFactor float64 `yaml:"recovery_factor"`

	Best    float64 `yaml:"best"`
	Worst   float64 `yaml:"worst"`
	AvgWin  float64 `yaml:"avg_win"`
	AvgLoss float64 `yaml:"avg_loss"`

	MaxConsecutiveWins   int `yaml:"max_consecutive_wins"`
	MaxConsecutiveLosses int `yaml:"max_consecutive_losses"`

	AverageDuration time.Duration `yaml:"average_duration"`

	// ReturnInterval is the bootstrap interval of the mean trade return
	ReturnInterval metric.BootstrapInterval `yaml:"return_interval"`
}

// ComputeMetrics derives the metrics from closed trades and the equity curve.
// equity starts with the initial account value.
func ComputeMetrics(trades []core.TradeResult, equity []float64, seed int64, samples int) Metrics {
	live := lo.Filter(trades, func(trade core.TradeResult, _ int) bool {
		return !trade.Paper
	})

	m := Metrics{
		Trades:      len(live),
		PaperTrades: len(trades) - len(live),
	}

	returns := metric.Returns(equity)
	m.Sharpe = metric.Sharpe(returns)
	m.Sortino = metric.Sortino(returns)
	m.MaxDrawdown = metric.MaxDrawdown(equity)
	if len(equity) > 1 && equity[0] > 0 {
		m.TotalReturn = equity[len(equity)-1]/equity[0] - 1
	}
	if m.MaxDrawdown > 0 {
		m.RecoveryFactor = m.TotalReturn / m.MaxDrawdown
	}

	if len(live) == 0 {
		return m
	}

	pnl := lo.Map(live, func(trade core.TradeResult, _ int) float64 { return trade.PnL })
	pct := lo.Map(live, func(trade core.TradeResult, _ int) float64 { return trade.ReturnPct })
	wins := lo.Filter(pnl, func(v float64, _ int) bool { return v > 0 })
	losses := lo.Filter(pnl, func(v float64, _ int) bool { return v < 0 })

	m.Wins = len(wins)
	m.Losses = len(losses)
	m.WinRate = float64(m.Wins) / float64(m.Trades)
	m.ProfitFactor = metric.ProfitFactor(pnl)
	m.Payoff = metric.Payoff(pnl)
	m.Expectancy = metric.Mean(pnl)
	m.AverageR = lo.MeanBy(live, func(trade core.TradeResult) float64 { return trade.RMultiple })
	m.AvgWin = metric.Mean(wins)
	m.AvgLoss = metric.Mean(losses)
	m.Best = lo.Max(pct)
	m.Worst = lo.Min(pct)
	m.MaxConsecutiveWins, m.MaxConsecutiveLosses = streaks(pnl)

	var total time.Duration
	for _, trade := range live {
		total += trade.Duration
	}
	m.AverageDuration = total / time.Duration(len(live))

	m.ReturnInterval = metric.Bootstrap(pct, metric.Mean, samples, ReturnConfidence, seed)
	return m
}

// Values exposes the metrics under the optimizer metric names
func (m Metrics) Values() map[string]float64 {
	return map[string]float64{
		string(optimizer.MetricTotalReturn):  m.TotalReturn,
		string(optimizer.MetricWinRate):      m.WinRate,
		string(optimizer.MetricProfitFactor): m.ProfitFactor,
		string(optimizer.MetricExpectancy):   m.Expectancy,
		string(optimizer.MetricDrawdown):     m.MaxDrawdown,
		string(optimizer.MetricSharpeRatio):  m.Sharpe,
		string(optimizer.MetricSortinoRatio): m.Sortino,
		string(optimizer.MetricTradeCount):   float64(m.Trades),
	}
}

// streaks returns the longest runs of winning and losing trades.
// A flat trade ends both runs.
func streaks(pnl []float64) (int, int) {
	var wins, losses, maxWins, maxLosses int
	for _, v := range pnl {
		switch {
		case v > 0:
			wins++
			losses = 0
		case v < 0:
			losses++
			wins = 0
		default:
			wins, losses = 0, 0
		}
		maxWins = max(maxWins, wins)
		maxLosses = max(maxLosses, losses)
	}
	return maxWins, maxLosses
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
