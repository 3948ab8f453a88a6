// Package telemetry exports decision and execution counters to Prometheus.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/risk"
)

const namespace = "tradeplan"

var states = []core.DrawdownState{
	core.StateNormal,
	core.StateReduced,
	core.StateMinimal,
	core.StatePaperOnly,
	core.StateHalted,
}

// Metrics observes the decision pipeline and the validator
type Metrics struct {
	candidates  *prometheus.CounterVec
	plans       *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	fills       *prometheus.CounterVec
	exits       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	realized    prometheus.Gauge
	state       *prometheus.GaugeVec
	equity      prometheus.Gauge
	monthlyPnL  prometheus.Gauge
	open        *prometheus.GaugeVec
}

var _ decision.Observer = (*Metrics)(nil)

// New registers the collectors on reg, the default registerer when nil
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Scored candidates by tier",
		}, []string{"tier"}),
		plans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Accepted trade plans by strategy variant",
		}, []string{"strategy", "paper"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected instruments by reason",
		}, []string{"reason"}),
		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Executions by kind",
		}, []string{"kind", "paper"}),
		exits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Closed positions by exit status",
		}, []string{"status"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drawdown_transitions_total",
			Help:      "Drawdown state changes",
		}, []string{"from", "to"}),
		realized: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realized_pnl",
			Help:      "Realised P&L of live partial and final exits",
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drawdown_state",
			Help:      "Current drawdown state, 1 for the active one",
		}, []string{"state"}),
		equity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equity",
			Help:      "Marked account equity",
		}),
		monthlyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monthly_pnl_ratio",
			Help:      "Month to date P&L as a fraction of month start equity",
		}),
		open: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Open positions",
		}, []string{"paper"}),
	}
}

// ObserveResult implements decision.Observer
func (m *Metrics) ObserveResult(result decision.Result) {
	if result.Candidate != nil && result.Candidate.Tier != "" {
		m.candidates.WithLabelValues(string(result.Candidate.Tier)).Inc()
	}

	if result.Accepted() {
		m.plans.WithLabelValues(string(result.Plan.Strategy), strconv.FormatBool(result.Plan.Paper)).Inc()
		return
	}
	m.rejections.WithLabelValues(result.Reason()).Inc()
}

// ObserveFill counts an execution
func (m *Metrics) ObserveFill(_ string, fill risk.Fill, paper bool) {
	m.fills.WithLabelValues(string(fill.Kind), strconv.FormatBool(paper)).Inc()

	if fill.Kind == core.AuditExit {
		m.exits.WithLabelValues(string(fill.Status)).Inc()
	}
	if fill.Kind != core.AuditFill && !paper {
		m.realized.Add(fill.PnL)
	}
}

// ObserveTransition counts a drawdown state change
func (m *Metrics) ObserveTransition(transition risk.Transition) {
	m.transitions.WithLabelValues(string(transition.From), string(transition.To)).Inc()
	m.setState(transition.To)
}

// ObserveEquity publishes the marked account
func (m *Metrics) ObserveEquity(account core.AccountState) {
	m.equity.Set(account.Equity)
	m.monthlyPnL.Set(account.MonthlyPnL)
	m.setState(account.State)

	live := account.LiveCount()
	m.open.WithLabelValues("false").Set(float64(live))
	m.open.WithLabelValues("true").Set(float64(len(account.OpenPositions()) - live))
}

func (m *Metrics) setState(active core.DrawdownState) {
	for _, state := range states {
		value := 0.0
		if state == active {
			value = 1
		}
		m.state.WithLabelValues(string(state)).Set(value)
	}
}
