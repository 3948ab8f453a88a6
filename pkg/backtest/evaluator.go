package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/optimizer"
)

// Factory builds a validator with a parameter set applied. Every call must
// return an independent validator, evaluations may run concurrently.
type Factory func(params optimizer.ParameterSet) (*Validator, error)

// Evaluator scores parameter sets by replaying a fixed span of history
type Evaluator struct {
	factory     Factory
	instruments []decision.Instrument
	equity      float64
	from        time.Time
}

// NewEvaluator creates an evaluator replaying instruments from from with a
// fresh account of the given equity. Earlier bars only warm up indicators.
func NewEvaluator(factory Factory, instruments []decision.Instrument, equity float64, from time.Time) *Evaluator {
	return &Evaluator{
		factory:     factory,
		instruments: instruments,
		equity:      equity,
		from:        from,
	}
}

// Evaluate implements optimizer.Evaluator
func (e *Evaluator) Evaluate(ctx context.Context, params optimizer.ParameterSet) (*optimizer.Result, error) {
	validator, err := e.factory(params)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	start := e.from
	if start.IsZero() {
		start = firstBarTime(e.instruments)
	}

	account := validator.Pipeline().Risk().NewAccount(e.equity, start)
	result, err := validator.Replay(ctx, e.instruments, account, e.from)
	if err != nil {
		return nil, err
	}

	return &optimizer.Result{
		Parameters: params,
		Metrics:    result.Metrics.Values(),
	}, nil
}

// Clip keeps the bars of every instrument stamped before end
func Clip(instruments []decision.Instrument, end time.Time) []decision.Instrument {
	clipped := make([]decision.Instrument, len(instruments))
	for i, in := range instruments {
		n := sort.Search(len(in.Bars), func(j int) bool {
			return !in.Bars[j].Time.Before(end)
		})
		clipped[i] = decision.Instrument{Symbol: in.Symbol, Sector: in.Sector, Bars: in.Bars[:n:n]}
	}
	return clipped
}

// Span returns the first bar time and the last bar time across instruments
func Span(instruments []decision.Instrument) (time.Time, time.Time) {
	var first, last time.Time
	for _, in := range instruments {
		if len(in.Bars) == 0 {
			continue
		}
		if head := in.Bars[0].Time; first.IsZero() || head.Before(first) {
			first = head
		}
		if tail := in.Bars[len(in.Bars)-1].Time; tail.After(last) {
			last = tail
		}
	}
	return first, last
}

func firstBarTime(instruments []decision.Instrument) time.Time {
	first, _ := Span(instruments)
	return first
}
