// Package decision runs one decision cycle across a universe: indicator
// snapshots, scoring with strategy selection, then risk sizing.
package decision

import (
	"context"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/raykavin/tradeplan/pkg/scoring"
)

// HistoryBars is the number of trailing bars handed to scoring and stop placement
const HistoryBars = 60

// Instrument is the bar history and metadata of one symbol
type Instrument struct {
	Symbol string
	Sector string
	Bars   []core.Bar
}

// Result is the outcome of one instrument in a cycle. Err carries the first
// rejection; Candidate is kept whenever scoring ran.
type Result struct {
	Symbol    string
	Time      time.Time
	Candidate *core.ScoredCandidate
	Plan      *core.TradePlan
	Err       error
}

// Reason returns the stable rejection label, empty for accepted plans
func (r Result) Reason() string {
	return core.RejectionReason(r.Err)
}

// Accepted reports whether the result carries a plan
func (r Result) Accepted() bool {
	return r.Plan != nil && r.Err == nil
}

// Observer is notified of every result, in cycle order
type Observer interface {
	ObserveResult(Result)
}

// Pipeline chains the indicator, scoring and risk engines
type Pipeline struct {
	indicators *indicator.Engine
	pool       *indicator.Pool
	scorer     *scoring.Scorer
	risk       *risk.Engine
	observers  []Observer
	log        logger.Logger
	workers    int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers sets the indicator pool size
func WithWorkers(workers int) Option {
	return func(p *Pipeline) {
		p.workers = workers
	}
}

// WithObserver adds a result observer
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, observer)
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// NewPipeline creates a pipeline from its three engines
func NewPipeline(indicators *indicator.Engine, scorer *scoring.Scorer, riskEngine *risk.Engine, options ...Option) *Pipeline {
	pipeline := &Pipeline{
		indicators: indicators,
		scorer:     scorer,
		risk:       riskEngine,
		log:        zerolog.Nop(),
	}
	for _, option := range options {
		option(pipeline)
	}
	pipeline.pool = indicator.NewPool(indicators, pipeline.workers)
	return pipeline
}

func (p *Pipeline) Indicators() *indicator.Engine { return p.indicators }

func (p *Pipeline) Pool() *indicator.Pool { return p.pool }

func (p *Pipeline) Scorer() *scoring.Scorer { return p.scorer }

func (p *Pipeline) Risk() *risk.Engine { return p.risk }

// Cycle decides on the latest bar of every instrument. Snapshots are computed
// concurrently; scoring and sizing run sequentially in instrument order so
// earlier plans count toward the caps of later ones. Only a context error
// is returned; everything else is reported per instrument.
func (p *Pipeline) Cycle(ctx context.Context, instruments []Instrument, account core.AccountState) ([]Result, error) {
	inputs := make([]indicator.Input, len(instruments))
	for i, in := range instruments {
		inputs[i] = indicator.Input{Symbol: in.Symbol, Bars: in.Bars}
	}

	outputs, err := p.pool.SnapshotAll(ctx, inputs)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(instruments))
	var accepted []core.TradePlan

	for i, out := range outputs {
		in := instruments[i]
		if out.Err != nil {
			results[i] = p.emit(Result{Symbol: in.Symbol, Time: lastTime(in.Bars), Err: out.Err})
			continue
		}

		snapshot, _ := out.Last()
		results[i] = p.Decide(snapshot, Tail(in.Bars, HistoryBars), in.Sector, account, accepted)
		if results[i].Accepted() {
			accepted = append(accepted, *results[i].Plan)
		}
	}

	return results, nil
}

// Decide scores one snapshot and sizes it against the account. bars is the
// recent history ending at the snapshot bar.
func (p *Pipeline) Decide(snapshot core.Snapshot, bars []core.Bar, sector string, account core.AccountState, accepted []core.TradePlan) Result {
	result := Result{Symbol: snapshot.Symbol, Time: snapshot.Time}

	candidate, err := p.scorer.Score(scoring.Input{Snapshot: snapshot, Bars: bars})
	result.Candidate = &candidate
	// a halted account is reported as halted whatever the score
	if err != nil && !account.Halted() {
		result.Err = err
		return p.emit(result)
	}

	plan, err := p.risk.Plan(risk.Request{Candidate: candidate, Bars: bars, Sector: sector}, account, accepted)
	if err != nil {
		result.Err = err
		return p.emit(result)
	}

	result.Plan = &plan
	return p.emit(result)
}

func (p *Pipeline) emit(result Result) Result {
	if result.Err != nil {
		p.log.WithFields(map[string]any{
			"symbol": result.Symbol,
			"reason": result.Reason(),
		}).WithError(result.Err).Debug("instrument rejected")
	} else {
		p.log.WithFields(map[string]any{
			"symbol":  result.Symbol,
			"variant": result.Plan.Strategy,
			"shares":  result.Plan.Shares,
			"paper":   result.Plan.Paper,
			"score":   result.Plan.Score,
		}).Info("trade plan emitted")
	}

	for _, observer := range p.observers {
		observer.ObserveResult(result)
	}
	return result
}

// Tail returns at most the last n bars
func Tail(bars []core.Bar, n int) []core.Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

func lastTime(bars []core.Bar) time.Time {
	if len(bars) == 0 {
		return time.Time{}
	}
	return bars[len(bars)-1].Time
}
