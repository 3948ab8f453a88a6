package indicator

import (
	"fmt"

	"github.com/raykavin/tradeplan/pkg/core"
)

// Engine turns bar history into indicator snapshots
type Engine struct {
	catalogue *Catalogue
}

// NewEngine creates an engine for a catalogue, the default one when nil
func NewEngine(catalogue *Catalogue) *Engine {
	if catalogue == nil {
		catalogue = DefaultCatalogue()
	}
	return &Engine{catalogue: catalogue}
}

// Catalogue returns the catalogue used by the engine
func (e *Engine) Catalogue() *Catalogue {
	return e.catalogue
}

// Snapshot computes the snapshot of the last bar. Only the last Window bars
// are used, so a live call and a replay over the same bars agree.
func (e *Engine) Snapshot(bars []core.Bar) (core.Snapshot, error) {
	frame, err := e.frame(bars)
	if err != nil {
		return core.Snapshot{}, err
	}

	return e.snapshot(frame.Sample(e.catalogue.Window())), nil
}

// Compute returns one snapshot per bar from the minimum look-back onward,
// in time order. Each snapshot is computed from the bounded window ending at
// its bar.
func (e *Engine) Compute(bars []core.Bar) ([]core.Snapshot, error) {
	frame, err := e.frame(bars)
	if err != nil {
		return nil, err
	}

	minimum := e.catalogue.MinLookback()
	window := e.catalogue.Window()
	snapshots := make([]core.Snapshot, 0, frame.Len()-minimum+1)
	for end := minimum; end <= frame.Len(); end++ {
		snapshots = append(snapshots, e.snapshot(frame.Slice(end-window, end)))
	}

	return snapshots, nil
}

func (e *Engine) frame(bars []core.Bar) (*core.Frame, error) {
	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}

	if minimum := e.catalogue.MinLookback(); len(bars) < minimum {
		symbol := ""
		if len(bars) > 0 {
			symbol = bars[0].Symbol
		}
		return nil, fmt.Errorf("%w: %s has %d bars, need %d", core.ErrInsufficientHistory, symbol, len(bars), minimum)
	}

	return core.NewFrame(bars[0].Symbol, bars), nil
}

func (e *Engine) snapshot(frame *core.Frame) core.Snapshot {
	size := frame.Len()
	snapshot := core.Snapshot{
		Symbol:     frame.Symbol,
		Time:       frame.LastUpdate,
		Bar:        frame.LastBar(),
		Values:     make(map[string]float64),
		PrevValues: make(map[string]float64),
	}
	if size > 1 {
		snapshot.Previous = frame.Bar(size - 2)
	}

	for _, def := range e.catalogue.Definitions() {
		if size < def.Lookback {
			continue
		}

		for name, series := range def.Compute(frame) {
			if len(series) != size {
				continue
			}
			if v := series[size-1]; core.Defined(v) {
				snapshot.Values[name] = v
			}
			if size-1 >= def.Lookback {
				if v := series[size-2]; core.Defined(v) {
					snapshot.PrevValues[name] = v
				}
			}
		}
	}

	return snapshot
}
