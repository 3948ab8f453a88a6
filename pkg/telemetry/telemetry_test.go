package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raykavin/tradeplan/pkg/backtest"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ backtest.Observer = (*Metrics)(nil)

func TestMetrics_ObserveResult(t *testing.T) {
	metrics := New(prometheus.NewRegistry())

	metrics.ObserveResult(decision.Result{
		Symbol:    "AAA",
		Candidate: &core.ScoredCandidate{Tier: core.TierStrong},
		Plan:      &core.TradePlan{Symbol: "AAA", Strategy: core.StrategyMomentumBreakout},
	})
	metrics.ObserveResult(decision.Result{
		Symbol:    "BBB",
		Candidate: &core.ScoredCandidate{Tier: core.TierWeak},
		Err:       core.ErrBelowScoreThreshold,
	})
	metrics.ObserveResult(decision.Result{Symbol: "CCC", Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.candidates.WithLabelValues("STRONG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.candidates.WithLabelValues("WEAK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.plans.WithLabelValues("momentum_breakout", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rejections.WithLabelValues("below_score")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rejections.WithLabelValues("error")))
}

func TestMetrics_ObserveFill(t *testing.T) {
	metrics := New(prometheus.NewRegistry())

	metrics.ObserveFill("AAA", risk.Fill{Kind: core.AuditFill, Status: core.StatusOpen}, false)
	metrics.ObserveFill("AAA", risk.Fill{Kind: core.AuditPartial, Status: core.StatusOpen, PnL: 37.5}, false)
	metrics.ObserveFill("AAA", risk.Fill{Kind: core.AuditExit, Status: core.StatusTargetHit, PnL: 75}, false)
	metrics.ObserveFill("BBB", risk.Fill{Kind: core.AuditExit, Status: core.StatusStopped, PnL: -50}, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fills.WithLabelValues("fill", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fills.WithLabelValues("exit", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.exits.WithLabelValues(string(core.StatusTargetHit))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.exits.WithLabelValues(string(core.StatusStopped))))
	assert.InDelta(t, 112.5, testutil.ToFloat64(metrics.realized), 1e-9)
}

func TestMetrics_State(t *testing.T) {
	metrics := New(prometheus.NewRegistry())
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	account := core.NewAccountState(10_000, 0.01, at)
	metrics.ObserveEquity(account)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.state.WithLabelValues(string(core.StateNormal))))
	assert.Equal(t, 10_000.0, testutil.ToFloat64(metrics.equity))

	metrics.ObserveTransition(risk.Transition{From: core.StateNormal, To: core.StateReduced, At: at})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("NORMAL", "REDUCED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.state.WithLabelValues(string(core.StateNormal))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.state.WithLabelValues(string(core.StateReduced))))
}

func TestNew_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	New(registry)

	require.Panics(t, func() { New(registry) })
}
