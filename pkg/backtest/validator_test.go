package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/raykavin/tradeplan/pkg/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return start.AddDate(0, 0, i)
}

func makeBars(symbol string, n int, phase float64) []core.Bar {
	bars := make([]core.Bar, n)
	price := 100.0
	for i := range bars {
		drift := 1.2*math.Sin(float64(i)/6+phase) + 0.15
		open := price
		closePrice := price + drift
		bars[i] = core.Bar{
			Symbol: symbol,
			Time:   day(i),
			Open:   open,
			High:   math.Max(open, closePrice) + 0.6,
			Low:    math.Min(open, closePrice) - 0.6,
			Close:  closePrice,
			Volume: 1000 + float64((i*37)%11)*150,
		}
		price = closePrice
	}
	return bars
}

func universe(n int) []decision.Instrument {
	return []decision.Instrument{
		{Symbol: "AAA", Sector: "Tech", Bars: makeBars("AAA", n, 0)},
		{Symbol: "BBB", Sector: "Tech", Bars: makeBars("BBB", n, 1.3)},
		{Symbol: "CCC", Sector: "Energy", Bars: makeBars("CCC", n, 2.1)},
	}
}

func newValidator(t *testing.T, cfg risk.Config, options ...Option) *Validator {
	t.Helper()
	riskEngine, err := risk.NewEngine(cfg, risk.WithCostModel(core.CostModel{}))
	require.NoError(t, err)
	pipeline := decision.NewPipeline(indicator.NewEngine(nil), scoring.NewScorer(), riskEngine, decision.WithWorkers(2))
	return NewValidator(pipeline, options...)
}

type memoryJournal struct {
	trades []*core.TradeRecord
	audit  []*core.AuditEntry
}

func (j *memoryJournal) RecordTrade(record *core.TradeRecord) error {
	j.trades = append(j.trades, record)
	return nil
}

func (j *memoryJournal) RecordAudit(entry *core.AuditEntry) error {
	j.audit = append(j.audit, entry)
	return nil
}

func (j *memoryJournal) Trades(...core.TradeFilter) ([]*core.TradeRecord, error) {
	return j.trades, nil
}

func (j *memoryJournal) Audit(string) ([]*core.AuditEntry, error) {
	return j.audit, nil
}

func (j *memoryJournal) Close() error { return nil }

type fillRecorder struct {
	fills       []risk.Fill
	transitions []risk.Transition
	marks       int
}

func (r *fillRecorder) ObserveFill(_ string, fill risk.Fill, _ bool) {
	r.fills = append(r.fills, fill)
}

func (r *fillRecorder) ObserveTransition(transition risk.Transition) {
	r.transitions = append(r.transitions, transition)
}

func (r *fillRecorder) ObserveEquity(core.AccountState) {
	r.marks++
}

func plan(symbol string, signal time.Time) core.TradePlan {
	return core.TradePlan{
		Symbol:     symbol,
		Sector:     "Tech",
		Time:       signal,
		Strategy:   core.StrategyMomentumBreakout,
		Holding:    core.HoldingSwing,
		Entry:      100,
		Stop:       95,
		TP1:        107.5,
		TP2:        115,
		ATR:        5,
		Shares:     10,
		RewardRisk: 3,
	}
}

// scripted replays bars of one symbol without any decision, so only the
// injected plan trades
func scripted(v *Validator, account core.AccountState, bars []core.Bar) *session {
	s := v.newSession(account, time.Time{})
	s.series[bars[0].Symbol] = &series{
		instrument: decision.Instrument{Symbol: bars[0].Symbol, Sector: "Tech", Bars: bars},
		offset:     len(bars),
	}
	return s
}

func TestSession_TradeLifecycle(t *testing.T) {
	journal := &memoryJournal{}
	observer := &fillRecorder{}
	v := newValidator(t, risk.DefaultConfig(), WithJournal(journal), WithObserver(observer), WithRunID("run"))
	account := v.Pipeline().Risk().NewAccount(10000, day(0))

	bars := []core.Bar{
		{Symbol: "AAA", Time: day(1), Open: 100, High: 103, Low: 99, Close: 102, Volume: 1000},
		{Symbol: "AAA", Time: day(2), Open: 104, High: 108, Low: 103, Close: 107, Volume: 1000},
		{Symbol: "AAA", Time: day(3), Open: 110, High: 116, Low: 109, Close: 115, Volume: 1000},
	}
	s := scripted(v, account, bars)
	s.pending["AAA"] = plan("AAA", day(0))

	require.NoError(t, s.step(day(1), bars[:1]))
	position, ok := s.account.Position("AAA")
	require.True(t, ok)
	assert.Equal(t, 100.0, position.EntryPrice)
	assert.Equal(t, day(1), position.OpenedAt)
	assert.InDelta(t, 9000, s.account.Cash, 1e-9)
	assert.InDelta(t, 10020, s.account.Equity, 1e-9)

	require.NoError(t, s.step(day(2), bars[1:2]))
	position, ok = s.account.Position("AAA")
	require.True(t, ok)
	assert.Equal(t, int64(5), position.Shares)
	assert.True(t, position.TP1Hit)
	assert.InDelta(t, 100.5, position.Stop, 1e-9)
	assert.InDelta(t, 9537.5, s.account.Cash, 1e-9)

	require.NoError(t, s.step(day(3), bars[2:]))
	require.NoError(t, s.finish())

	_, ok = s.account.Position("AAA")
	assert.False(t, ok)
	assert.Empty(t, s.account.Positions)
	assert.InDelta(t, 10112.5, s.account.Cash, 1e-9)
	assert.InDelta(t, 10112.5, s.account.Equity, 1e-9)
	assert.Equal(t, 1, s.account.ConsecutiveWins)

	require.Len(t, s.result.Trades, 1)
	trade := s.result.Trades[0]
	assert.Equal(t, core.StatusTargetHit, trade.Status)
	assert.InDelta(t, 112.5, trade.PnL, 1e-9)
	assert.InDelta(t, 2.25, trade.RMultiple, 1e-9)
	assert.Equal(t, 1, v.Pipeline().Scorer().Selector().Tracker().Trades(core.StrategyMomentumBreakout))

	kinds := make([]core.AuditKind, len(s.result.Audit))
	for i, entry := range s.result.Audit {
		kinds[i] = entry.Kind
		assert.Equal(t, int64(i+1), entry.Seq)
		assert.Equal(t, "run", entry.RunID)
	}
	assert.Equal(t, []core.AuditKind{core.AuditFill, core.AuditPartial, core.AuditExit}, kinds)

	require.Len(t, journal.trades, 1)
	assert.Equal(t, "run", journal.trades[0].RunID)
	assert.Len(t, journal.audit, 3)
	assert.Len(t, observer.fills, 3)
	assert.Equal(t, 3, observer.marks)
	assert.Len(t, s.result.Equity, 3)
}

func TestSession_GapThroughStopCancels(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(10000, day(0))
	bars := []core.Bar{{Symbol: "AAA", Time: day(1), Open: 94, High: 96, Low: 93, Close: 95, Volume: 1000}}

	s := scripted(v, account, bars)
	s.pending["AAA"] = plan("AAA", day(0))
	require.NoError(t, s.step(day(1), bars))

	assert.Empty(t, s.account.OpenPositions())
	assert.Equal(t, 10000.0, s.account.Cash)
	require.Len(t, s.result.Audit, 1)
	assert.Equal(t, core.AuditCancel, s.result.Audit[0].Kind)
}

func TestSession_FillOnSignalBarAborts(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(10000, day(0))
	bars := []core.Bar{{Symbol: "AAA", Time: day(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}}

	s := scripted(v, account, bars)
	s.pending["AAA"] = plan("AAA", day(1))
	assert.ErrorIs(t, s.step(day(1), bars), core.ErrLookAheadViolation)
}

func TestSession_InsufficientCashCancels(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(500, day(0))
	bars := []core.Bar{{Symbol: "AAA", Time: day(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}}

	s := scripted(v, account, bars)
	s.pending["AAA"] = plan("AAA", day(0))
	require.NoError(t, s.step(day(1), bars))

	assert.Empty(t, s.account.OpenPositions())
	require.Len(t, s.result.Audit, 1)
	assert.Equal(t, core.AuditCancel, s.result.Audit[0].Kind)
	assert.Equal(t, "500.00", s.result.Audit[0].Fields["cash"])
}

func TestSession_FinishLiquidatesAndCancels(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(10000, day(0))
	bars := []core.Bar{{Symbol: "AAA", Time: day(1), Open: 100, High: 103, Low: 99, Close: 102, Volume: 1000}}

	s := scripted(v, account, bars)
	s.pending["AAA"] = plan("AAA", day(0))
	require.NoError(t, s.step(day(1), bars))
	s.pending["BBB"] = plan("BBB", day(1))
	require.NoError(t, s.finish())

	require.Len(t, s.result.Trades, 1)
	assert.Equal(t, core.StatusManuallyClosed, s.result.Trades[0].Status)
	assert.InDelta(t, 20, s.result.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 10020, s.account.Equity, 1e-9)
	assert.InDelta(t, 10020, s.result.Equity[0].Equity, 1e-9)
	assert.Empty(t, s.pending)

	last := s.result.Audit[len(s.result.Audit)-1]
	assert.Equal(t, core.AuditExit, last.Kind)
	assert.Equal(t, core.AuditCancel, s.result.Audit[1].Kind)
	assert.Equal(t, "BBB", s.result.Audit[1].Symbol)
}

func TestSession_PaperPlanKeepsCash(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(10000, day(0))
	bars := []core.Bar{
		{Symbol: "AAA", Time: day(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		{Symbol: "AAA", Time: day(2), Open: 98, High: 98, Low: 94, Close: 95, Volume: 1000},
	}

	s := scripted(v, account, bars)
	paper := plan("AAA", day(0))
	paper.Paper = true
	s.pending["AAA"] = paper

	require.NoError(t, s.step(day(1), bars[:1]))
	assert.Equal(t, 10000.0, s.account.Cash)
	assert.Equal(t, 0, s.account.LiveCount())
	require.NoError(t, s.step(day(2), bars[1:]))

	require.Len(t, s.result.Trades, 1)
	assert.True(t, s.result.Trades[0].Paper)
	assert.Equal(t, core.StatusStopped, s.result.Trades[0].Status)
	assert.Equal(t, 10000.0, s.account.Equity)
	assert.Equal(t, 0, s.account.ConsecutiveLosses)
	assert.InDelta(t, -50, s.account.PaperPnL, 1e-9)
}

func TestSession_PaperOnlyCancelsLivePlan(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(10000, day(0))
	account.State = core.StatePaperOnly
	bars := []core.Bar{{Symbol: "AAA", Time: day(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}}

	s := scripted(v, account, bars)
	s.pending["AAA"] = plan("AAA", day(0))
	require.NoError(t, s.step(day(1), bars))

	assert.Empty(t, s.account.OpenPositions())
	require.Len(t, s.result.Audit, 1)
	assert.Equal(t, core.AuditCancel, s.result.Audit[0].Kind)
	assert.Equal(t, "account paper only before fill", s.result.Audit[0].Message)

	paper := plan("AAA", day(0))
	paper.Paper = true
	s = scripted(v, account, bars)
	s.pending["AAA"] = paper
	require.NoError(t, s.step(day(1), bars))

	position, ok := s.account.Position("AAA")
	require.True(t, ok)
	assert.True(t, position.Paper)
}

// An exit that moves the account to PAPER_ONLY does not affect fills of the
// same timestamp, whichever side of the exiting symbol they sort on.
func TestSession_FillGateIgnoresSymbolOrder(t *testing.T) {
	for _, other := range []string{"A00", "ZZZ"} {
		t.Run(other, func(t *testing.T) {
			v := newValidator(t, risk.DefaultConfig())
			account := v.Pipeline().Risk().NewAccount(10000, day(0))

			aaa := []core.Bar{
				{Symbol: "AAA", Time: day(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
				{Symbol: "AAA", Time: day(2), Open: 95, High: 96, Low: 88, Close: 89, Volume: 1000},
			}
			otherBar := core.Bar{Symbol: other, Time: day(2), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}

			s := scripted(v, account, aaa)
			s.series[other] = &series{
				instrument: decision.Instrument{Symbol: other, Sector: "Energy", Bars: []core.Bar{otherBar}},
				offset:     1,
			}

			losing := plan("AAA", day(0))
			losing.Stop = 90
			losing.Shares = 80
			s.pending["AAA"] = losing
			require.NoError(t, s.step(day(1), aaa[:1]))
			require.Equal(t, core.StateNormal, s.account.State)

			s.pending[other] = plan(other, day(1))
			step := []core.Bar{aaa[1], otherBar}
			if other < "AAA" {
				step = []core.Bar{otherBar, aaa[1]}
			}
			require.NoError(t, s.step(day(2), step))

			assert.Equal(t, core.StatePaperOnly, s.account.State)
			require.Len(t, s.result.Trades, 1)
			assert.InDelta(t, -800, s.result.Trades[0].PnL, 1e-9)

			position, ok := s.account.Position(other)
			require.True(t, ok)
			assert.False(t, position.Paper)
		})
	}
}

func TestValidator_Idempotent(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig(), WithRunID("idem"))
	instruments := universe(160)
	account := v.Pipeline().Risk().NewAccount(100000, day(0))

	first, err := v.Run(context.Background(), instruments, account)
	require.NoError(t, err)
	second, err := v.Run(context.Background(), instruments, account)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Equity, second.Equity)
	assert.Equal(t, first.Audit, second.Audit)
	assert.Equal(t, first.Account, second.Account)
	assert.Equal(t, first.Metrics, second.Metrics)

	require.Len(t, first.Equity, 160)
	assert.Equal(t, day(0), first.From)
	assert.Equal(t, day(159), first.To)
	assert.Empty(t, first.Account.OpenPositions())
}

func TestValidator_FillsStrictlyAfterSignal(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(100000, day(0))

	result, err := v.Run(context.Background(), universe(200), account)
	require.NoError(t, err)

	for _, trade := range result.Trades {
		assert.True(t, trade.OpenedAt.After(trade.SignalTime), "%s opened %s for signal %s",
			trade.Symbol, trade.OpenedAt, trade.SignalTime)
	}

	planned := map[string]time.Time{}
	for i, entry := range result.Audit {
		assert.Equal(t, int64(i+1), entry.Seq)
		switch entry.Kind {
		case core.AuditPlan:
			planned[entry.Symbol] = entry.Time
		case core.AuditFill:
			signal, ok := planned[entry.Symbol]
			require.True(t, ok)
			assert.True(t, entry.Time.After(signal))
		}
	}

	for i := 1; i < len(result.Equity); i++ {
		assert.True(t, result.Equity[i].Time.After(result.Equity[i-1].Time))
	}
}

func TestValidator_FreshListing(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	instruments := append(universe(120), decision.Instrument{
		Symbol: "NEW",
		Sector: "Tech",
		Bars:   makeBars("NEW", 20, 0.5),
	})
	account := v.Pipeline().Risk().NewAccount(100000, day(0))

	result, err := v.Run(context.Background(), instruments, account)
	require.NoError(t, err)

	var rejected bool
	for _, entry := range result.Audit {
		if entry.Symbol != "NEW" {
			continue
		}
		assert.Equal(t, core.AuditReject, entry.Kind)
		assert.Equal(t, "insufficient_history", entry.Fields["reason"])
		rejected = true
	}
	assert.True(t, rejected)

	for _, trade := range result.Trades {
		assert.NotEqual(t, "NEW", trade.Symbol)
	}
}

func TestValidator_ForeignSymbolRejected(t *testing.T) {
	tests := []struct {
		name string
		bars []core.Bar
	}{
		{name: "empty symbol", bars: makeBars("", 120, 0.5)},
		{name: "other instrument", bars: makeBars("AAA", 120, 0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(t, risk.DefaultConfig())
			instruments := append(universe(120), decision.Instrument{Symbol: "BAD", Sector: "Tech", Bars: tt.bars})
			account := v.Pipeline().Risk().NewAccount(100000, day(0))

			var result *Result
			require.NotPanics(t, func() {
				var err error
				result, err = v.Run(context.Background(), instruments, account)
				require.NoError(t, err)
			})

			var rejected int
			for _, entry := range result.Audit {
				if entry.Symbol != "BAD" {
					continue
				}
				assert.Equal(t, core.AuditReject, entry.Kind)
				assert.Equal(t, "invalid_bar", entry.Fields["reason"])
				rejected++
			}
			assert.Equal(t, 1, rejected)
			require.Len(t, result.Equity, 120)

			for _, trade := range result.Trades {
				assert.NotEqual(t, "BAD", trade.Symbol)
			}
		})
	}
}

func TestValidator_ReplayFrom(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(100000, day(100))

	result, err := v.Replay(context.Background(), universe(150), account, day(100))
	require.NoError(t, err)

	require.Len(t, result.Equity, 50)
	assert.Equal(t, day(100), result.From)
	for _, entry := range result.Audit {
		assert.False(t, entry.Time.Before(day(100)), "audit entry at %s", entry.Time)
	}
}

func TestValidator_Cancelled(t *testing.T) {
	v := newValidator(t, risk.DefaultConfig())
	account := v.Pipeline().Risk().NewAccount(100000, day(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Run(ctx, universe(80), account)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClock(t *testing.T) {
	clock := NewClock(
		[]core.Bar{{Symbol: "BBB", Time: day(0)}, {Symbol: "BBB", Time: day(2)}},
		[]core.Bar{{Symbol: "AAA", Time: day(0)}, {Symbol: "AAA", Time: day(1)}},
	)
	assert.Equal(t, 4, clock.Len())

	now, bars, ok := clock.Next()
	require.True(t, ok)
	assert.Equal(t, day(0), now)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAA", bars[0].Symbol)
	assert.Equal(t, "BBB", bars[1].Symbol)

	now, bars, ok = clock.Next()
	require.True(t, ok)
	assert.Equal(t, day(1), now)
	assert.Len(t, bars, 1)

	now, _, ok = clock.Next()
	require.True(t, ok)
	assert.Equal(t, day(2), now)

	_, _, ok = clock.Next()
	assert.False(t, ok)
}

func TestFillSimulator(t *testing.T) {
	riskEngine, err := risk.NewEngine(risk.DefaultConfig(), risk.WithCostModel(core.CostModel{SlippagePct: 0.001}))
	require.NoError(t, err)
	fills := NewFillSimulator(riskEngine.Exits())

	_, _, err = fills.Fill(plan("AAA", day(1)), core.Bar{Symbol: "AAA", Time: day(1), Open: 100})
	assert.ErrorIs(t, err, core.ErrLookAheadViolation)

	_, _, err = fills.Fill(plan("AAA", day(1)), core.Bar{Symbol: "AAA", Time: day(0), Open: 100})
	assert.ErrorIs(t, err, core.ErrLookAheadViolation)

	_, _, err = fills.Fill(plan("AAA", day(0)), core.Bar{Symbol: "BBB", Time: day(1), Open: 100})
	assert.Error(t, err)

	position, fill, err := fills.Fill(plan("AAA", day(0)), core.Bar{Symbol: "AAA", Time: day(1), Open: 100})
	require.NoError(t, err)
	assert.InDelta(t, 100.1, position.EntryPrice, 1e-9)
	assert.Equal(t, day(1), fill.Time)
	assert.Equal(t, core.AuditFill, fill.Kind)
}

func TestRunID(t *testing.T) {
	a := RunID([]byte("config"), []byte("data"))
	assert.Equal(t, a, RunID([]byte("config"), []byte("data")))
	assert.NotEqual(t, a, RunID([]byte("config"), []byte("other")))
	assert.Len(t, a, 36)
}
