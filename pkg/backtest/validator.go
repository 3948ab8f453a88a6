package backtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
)

// DefaultBootstrapSamples is the number of resamples behind the return interval
const DefaultBootstrapSamples = 2000

// Observer is notified of executions, state changes and equity marks
type Observer interface {
	ObserveFill(symbol string, fill risk.Fill, paper bool)
	ObserveTransition(transition risk.Transition)
	ObserveEquity(account core.AccountState)
}

// EquityPoint is the marked account value after one timestamp
type EquityPoint struct {
	Time   time.Time          `yaml:"time"`
	Equity float64            `yaml:"equity"`
	Cash   float64            `yaml:"cash"`
	State  core.DrawdownState `yaml:"state"`
}

// Result is the outcome of one replay
type Result struct {
	RunID       string
	From        time.Time
	To          time.Time
	Initial     core.AccountState
	Account     core.AccountState
	Trades      []core.TradeResult
	Equity      []EquityPoint
	Transitions []risk.Transition
	Audit       []core.AuditEntry
	Metrics     Metrics
}

// EquityValues returns the equity curve prefixed with the starting equity
func (r *Result) EquityValues() []float64 {
	values := make([]float64, 0, len(r.Equity)+1)
	values = append(values, r.Initial.Equity)
	for _, point := range r.Equity {
		values = append(values, point.Equity)
	}
	return values
}

// Validator replays instruments bar by bar through the decision pipeline.
// One account is threaded through the whole run; nothing reads the wall
// clock and every random draw is seeded, so a replay is reproducible.
type Validator struct {
	pipeline  *decision.Pipeline
	fills     FillSimulator
	exits     risk.ExitManager
	drawdown  risk.DrawdownMachine
	journal   core.Journal
	observers []Observer
	log       logger.Logger
	runID     string
	seed      int64
	samples   int
	progress  bool
}

// Option configures a Validator
type Option func(*Validator)

// WithJournal persists trades and audit entries as they happen
func WithJournal(journal core.Journal) Option {
	return func(v *Validator) {
		v.journal = journal
	}
}

// WithObserver adds an execution observer
func WithObserver(observer Observer) Option {
	return func(v *Validator) {
		v.observers = append(v.observers, observer)
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(v *Validator) {
		v.log = log
	}
}

// WithRunID sets the identifier stamped on audit entries and trade records
func WithRunID(runID string) Option {
	return func(v *Validator) {
		v.runID = runID
	}
}

// WithSeed sets the seed of the bootstrap interval
func WithSeed(seed int64) Option {
	return func(v *Validator) {
		v.seed = seed
	}
}

// WithBootstrapSamples sets the number of bootstrap resamples
func WithBootstrapSamples(samples int) Option {
	return func(v *Validator) {
		v.samples = samples
	}
}

// WithProgress shows a progress bar on stderr
func WithProgress(enabled bool) Option {
	return func(v *Validator) {
		v.progress = enabled
	}
}

// NewValidator creates a validator over a decision pipeline
func NewValidator(pipeline *decision.Pipeline, options ...Option) *Validator {
	validator := &Validator{
		pipeline: pipeline,
		exits:    pipeline.Risk().Exits(),
		drawdown: pipeline.Risk().Drawdown(),
		log:      zerolog.Nop(),
		runID:    "backtest",
		seed:     1,
		samples:  DefaultBootstrapSamples,
	}
	for _, option := range options {
		option(validator)
	}
	validator.fills = NewFillSimulator(validator.exits)
	return validator
}

// Pipeline returns the decision pipeline
func (v *Validator) Pipeline() *decision.Pipeline {
	return v.pipeline
}

// RunID returns the run identifier
func (v *Validator) RunID() string {
	return v.runID
}

// Run replays every bar of the instruments from a fresh strategy history
func (v *Validator) Run(ctx context.Context, instruments []decision.Instrument, account core.AccountState) (*Result, error) {
	return v.RunFrom(ctx, instruments, account, time.Time{})
}

// RunFrom is Run with bars before from used only for warm-up
func (v *Validator) RunFrom(ctx context.Context, instruments []decision.Instrument, account core.AccountState, from time.Time) (*Result, error) {
	v.pipeline.Scorer().Selector().Tracker().Reset()
	return v.Replay(ctx, instruments, account, from)
}

// Replay runs the instruments through the pipeline. Bars before from only
// warm up indicators: no decision, fill or equity mark happens before it.
// Open positions are liquidated at the last close when history runs out.
func (v *Validator) Replay(ctx context.Context, instruments []decision.Instrument, account core.AccountState, from time.Time) (*Result, error) {
	inputs := make([]indicator.Input, len(instruments))
	for i, in := range instruments {
		inputs[i] = indicator.Input{Symbol: in.Symbol, Bars: in.Bars}
	}

	outputs, err := v.pipeline.Pool().ComputeAll(ctx, inputs)
	if err != nil {
		return nil, err
	}

	s := v.newSession(account, from)

	var replayed [][]core.Bar
	for i, out := range outputs {
		in := instruments[i]
		if out.Err != nil {
			if err := s.audit(lastBarTime(in.Bars), in.Symbol, core.AuditReject, out.Err.Error(), map[string]string{
				"reason": core.RejectionReason(out.Err),
			}); err != nil {
				return nil, err
			}
			continue
		}

		s.series[in.Symbol] = &series{
			instrument: in,
			snapshots:  out.Snapshots,
			offset:     len(in.Bars) - len(out.Snapshots),
		}
		replayed = append(replayed, in.Bars)
	}

	clock := NewClock(replayed...)

	var bar *progressbar.ProgressBar
	if v.progress {
		bar = progressbar.Default(int64(clock.Len()))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now, bars, ok := clock.Next()
		if !ok {
			break
		}

		if err := s.step(now, bars); err != nil {
			return nil, err
		}

		if bar != nil {
			if err := bar.Add(len(bars)); err != nil {
				v.log.Warnf("update progressbar fail: %v", err)
			}
		}
	}

	if err := s.finish(); err != nil {
		return nil, err
	}

	result := s.result
	result.Account = s.account
	result.Metrics = ComputeMetrics(result.Trades, result.EquityValues(), v.seed, v.samples)

	v.log.WithFields(map[string]any{
		"run":      v.runID,
		"trades":   result.Metrics.Trades,
		"return":   result.Metrics.TotalReturn,
		"drawdown": result.Metrics.MaxDrawdown,
		"state":    result.Account.State,
	}).Info("replay finished")

	return result, nil
}

// series tracks replay progress through one instrument
type series struct {
	instrument decision.Instrument
	snapshots  []core.Snapshot
	offset     int // bar index of the first snapshot
	cursor     int // bars consumed so far
}

// advance consumes the next bar and returns its index
func (s *series) advance() int {
	s.cursor++
	return s.cursor - 1
}

// session holds the mutable state of one replay
type session struct {
	*Validator

	from    time.Time
	now     time.Time
	account core.AccountState
	series  map[string]*series
	pending map[string]core.TradePlan
	result  *Result
	seq     int64
}

func (v *Validator) newSession(account core.AccountState, from time.Time) *session {
	return &session{
		Validator: v,
		from:      from,
		account:   account,
		series:    make(map[string]*series),
		pending:   make(map[string]core.TradePlan),
		result:    &Result{RunID: v.runID, Initial: account},
	}
}

func (s *session) step(now time.Time, bars []core.Bar) error {
	s.now = now

	indexes := make([]int, len(bars))
	for i, bar := range bars {
		indexes[i] = s.series[bar.Symbol].advance()
	}

	if now.Before(s.from) {
		return nil
	}
	if s.result.From.IsZero() {
		s.result.From = now
	}
	s.result.To = now

	s.account = s.account.RollMonth(now)

	// fills are gated on the state the step opened with, so exits earlier
	// in the same timestamp can not change the outcome for later symbols
	gate := s.account.State
	for _, bar := range bars {
		if err := s.fill(bar, gate); err != nil {
			return err
		}
		if err := s.manage(bar); err != nil {
			return err
		}
	}

	var accepted []core.TradePlan
	for i, bar := range bars {
		plan, err := s.decide(bar, indexes[i], accepted)
		if err != nil {
			return err
		}
		if plan != nil {
			accepted = append(accepted, *plan)
		}
	}

	s.mark()
	return nil
}

func (s *session) fill(bar core.Bar, gate core.DrawdownState) error {
	plan, ok := s.pending[bar.Symbol]
	if !ok {
		return nil
	}
	delete(s.pending, bar.Symbol)

	switch {
	case gate == core.StateHalted:
		return s.audit(bar.Time, bar.Symbol, core.AuditCancel, "trading halted before fill", nil)
	case gate == core.StatePaperOnly && !plan.Paper:
		return s.audit(bar.Time, bar.Symbol, core.AuditCancel, "account paper only before fill", nil)
	}

	position, fill, err := s.fills.Fill(plan, bar)
	switch {
	case errors.Is(err, core.ErrLookAheadViolation):
		return err
	case errors.Is(err, risk.ErrGapThroughStop):
		return s.audit(bar.Time, bar.Symbol, core.AuditCancel, err.Error(), nil)
	case err != nil:
		return err
	}

	if !plan.Paper && s.account.Cash+fill.CashDelta() < 0 {
		return s.audit(bar.Time, bar.Symbol, core.AuditCancel, "insufficient cash at fill", map[string]string{
			"cost": fmt.Sprintf("%.2f", -fill.CashDelta()),
			"cash": fmt.Sprintf("%.2f", s.account.Cash),
		})
	}

	s.account = s.account.WithPosition(position, bar.Time)
	if !plan.Paper {
		s.account.Cash += fill.CashDelta()
	}

	return s.execution(bar.Symbol, fill, plan.Paper)
}

func (s *session) manage(bar core.Bar) error {
	position, ok := s.account.Position(bar.Symbol)
	if !ok {
		return nil
	}

	updated, fills, err := s.exits.OnBar(position, bar)
	if err != nil {
		return err
	}

	s.account = s.account.ReplacePosition(updated, bar.Time)
	for _, fill := range fills {
		if !updated.Paper {
			s.account.Cash += fill.CashDelta()
		}
		if err := s.execution(bar.Symbol, fill, updated.Paper); err != nil {
			return err
		}
	}

	if !updated.IsOpen() {
		return s.close(updated)
	}
	return nil
}

func (s *session) close(position core.Position) error {
	result := position.Result()

	s.account = s.account.Prune(s.now).Revalue()
	next, transition := s.drawdown.OnClose(s.account, result)
	s.account = next

	s.result.Trades = append(s.result.Trades, result)
	s.pipeline.Scorer().Selector().Tracker().Record(result)

	if s.journal != nil {
		record := core.NewTradeRecord(s.runID, int64(len(s.result.Trades)), result)
		if err := s.journal.RecordTrade(&record); err != nil {
			return fmt.Errorf("journal trade %s: %w", result.Symbol, err)
		}
	}

	if !transition.Changed() {
		return nil
	}

	s.result.Transitions = append(s.result.Transitions, transition)
	for _, observer := range s.observers {
		observer.ObserveTransition(transition)
	}

	s.log.WithFields(map[string]any{
		"from":   transition.From,
		"to":     transition.To,
		"reason": transition.Reason,
	}).Warn("drawdown state changed")

	return s.audit(transition.At, result.Symbol, core.AuditState, transition.String(), map[string]string{
		"from": string(transition.From),
		"to":   string(transition.To),
	})
}

func (s *session) decide(bar core.Bar, index int, accepted []core.TradePlan) (*core.TradePlan, error) {
	series := s.series[bar.Symbol]
	if index < series.offset {
		return nil, nil
	}

	snapshot := series.snapshots[index-series.offset]
	if !snapshot.Time.Equal(bar.Time) {
		return nil, fmt.Errorf("%w: %s snapshot at %s replayed at %s", core.ErrLookAheadViolation, bar.Symbol,
			snapshot.Time.Format(time.RFC3339), bar.Time.Format(time.RFC3339))
	}

	if _, held := s.account.Position(bar.Symbol); held {
		return nil, nil
	}

	history := decision.Tail(series.instrument.Bars[:index+1], decision.HistoryBars)
	result := s.pipeline.Decide(snapshot, history, series.instrument.Sector, s.account, accepted)

	if result.Candidate != nil && result.Candidate.Tier != "" {
		candidate := result.Candidate
		if err := s.audit(bar.Time, bar.Symbol, core.AuditSignal, fmt.Sprintf("score %.1f %s", candidate.Score, candidate.Tier), map[string]string{
			"score":   fmt.Sprintf("%.2f", candidate.Score),
			"tier":    string(candidate.Tier),
			"regime":  string(candidate.Regime),
			"variant": string(candidate.Strategy.Name),
		}); err != nil {
			return nil, err
		}
	}

	if !result.Accepted() {
		return nil, s.audit(bar.Time, bar.Symbol, core.AuditReject, result.Err.Error(), map[string]string{
			"reason": result.Reason(),
		})
	}

	plan := result.Plan
	s.pending[bar.Symbol] = *plan

	return plan, s.audit(bar.Time, bar.Symbol, core.AuditPlan,
		fmt.Sprintf("%d @ %.2f stop %.2f tp1 %.2f tp2 %.2f", plan.Shares, plan.Entry, plan.Stop, plan.TP1, plan.TP2),
		map[string]string{
			"strategy": string(plan.Strategy),
			"rr":       fmt.Sprintf("%.2f", plan.RewardRisk),
			"paper":    fmt.Sprintf("%t", plan.Paper),
		})
}

func (s *session) mark() {
	s.account = s.account.Revalue()
	s.result.Equity = append(s.result.Equity, EquityPoint{
		Time:   s.now,
		Equity: s.account.Equity,
		Cash:   s.account.Cash,
		State:  s.account.State,
	})

	for _, observer := range s.observers {
		observer.ObserveEquity(s.account)
	}
}

// finish cancels unfilled plans and liquidates what is still open
func (s *session) finish() error {
	symbols := lo.Keys(s.pending)
	slices.Sort(symbols)
	for _, symbol := range symbols {
		if err := s.audit(s.now, symbol, core.AuditCancel, "no bar left to fill", nil); err != nil {
			return err
		}
	}
	s.pending = map[string]core.TradePlan{}

	for _, position := range s.account.OpenPositions() {
		closed, fill, err := s.exits.CloseManually(position, position.LastPrice, s.now)
		if err != nil {
			return err
		}

		s.account = s.account.ReplacePosition(closed, s.now)
		if !closed.Paper {
			s.account.Cash += fill.CashDelta()
		}
		if err := s.execution(closed.Symbol, fill, closed.Paper); err != nil {
			return err
		}
		if err := s.close(closed); err != nil {
			return err
		}
	}

	if len(s.result.Equity) > 0 {
		s.account = s.account.Revalue()
		s.result.Equity[len(s.result.Equity)-1].Equity = s.account.Equity
		s.result.Equity[len(s.result.Equity)-1].Cash = s.account.Cash
		s.result.Equity[len(s.result.Equity)-1].State = s.account.State
	}

	return nil
}

func (s *session) execution(symbol string, fill risk.Fill, paper bool) error {
	for _, observer := range s.observers {
		observer.ObserveFill(symbol, fill, paper)
	}

	message := fmt.Sprintf("%d @ %.4f fee %.2f", fill.Shares, fill.Price, fill.Fee)
	if fill.Kind != core.AuditFill {
		message = fmt.Sprintf("%s pnl %.2f", message, fill.PnL)
	}

	return s.audit(fill.Time, symbol, fill.Kind, message, map[string]string{
		"status": string(fill.Status),
		"paper":  fmt.Sprintf("%t", paper),
	})
}

func (s *session) audit(at time.Time, symbol string, kind core.AuditKind, message string, fields map[string]string) error {
	s.seq++
	entry := core.AuditEntry{
		Seq:     s.seq,
		RunID:   s.runID,
		Time:    at,
		Symbol:  symbol,
		Kind:    kind,
		Message: message,
		Fields:  fields,
	}
	s.result.Audit = append(s.result.Audit, entry)

	if s.journal != nil {
		if err := s.journal.RecordAudit(&entry); err != nil {
			return fmt.Errorf("journal audit %d: %w", entry.Seq, err)
		}
	}
	return nil
}

func lastBarTime(bars []core.Bar) time.Time {
	if len(bars) == 0 {
		return time.Time{}
	}
	return bars[len(bars)-1].Time
}
