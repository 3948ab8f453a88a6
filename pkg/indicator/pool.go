package indicator

import (
	"context"
	"runtime"

	"github.com/raykavin/tradeplan/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Input is the bar history of one instrument
type Input struct {
	Symbol string
	Bars   []core.Bar
}

// Output holds the snapshots of one instrument, or the error that prevented them
type Output struct {
	Symbol    string
	Snapshots []core.Snapshot
	Err       error
}

// Last returns the most recent snapshot
func (o Output) Last() (core.Snapshot, bool) {
	if len(o.Snapshots) == 0 {
		return core.Snapshot{}, false
	}
	return o.Snapshots[len(o.Snapshots)-1], true
}

// Pool computes instruments concurrently on a bounded number of workers
type Pool struct {
	engine  *Engine
	workers int
}

// NewPool creates a pool, one worker per CPU when workers is not positive
func NewPool(engine *Engine, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{engine: engine, workers: workers}
}

// ComputeAll runs Engine.Compute for every input. Outputs keep the input
// order; an instrument error, including bars whose symbol differs from the
// input symbol, is stored in its output and never stops the others.
func (p *Pool) ComputeAll(ctx context.Context, inputs []Input) ([]Output, error) {
	return p.run(ctx, inputs, func(in Input) ([]core.Snapshot, error) {
		return p.engine.Compute(in.Bars)
	})
}

// SnapshotAll computes only the latest snapshot of every input
func (p *Pool) SnapshotAll(ctx context.Context, inputs []Input) ([]Output, error) {
	return p.run(ctx, inputs, func(in Input) ([]core.Snapshot, error) {
		snapshot, err := p.engine.Snapshot(in.Bars)
		if err != nil {
			return nil, err
		}
		return []core.Snapshot{snapshot}, nil
	})
}

func (p *Pool) run(ctx context.Context, inputs []Input, compute func(Input) ([]core.Snapshot, error)) ([]Output, error) {
	outputs := make([]Output, len(inputs))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for i, in := range inputs {
		i, in := i, in
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := core.CheckSymbol(in.Symbol, in.Bars); err != nil {
				outputs[i] = Output{Symbol: in.Symbol, Err: err}
				return nil
			}

			snapshots, err := compute(in)
			outputs[i] = Output{Symbol: in.Symbol, Snapshots: snapshots, Err: err}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return outputs, nil
}
