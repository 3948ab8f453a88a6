package strategy

import (
	"slices"
	"sync"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/metric"
)

// Tracker keeps the closed trade returns of every variant
type Tracker struct {
	mu      sync.RWMutex
	returns map[core.StrategyName][]float64
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{returns: make(map[core.StrategyName][]float64)}
}

// Record adds a closed trade to the history of its variant
func (t *Tracker) Record(result core.TradeResult) {
	if result.Paper {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.returns[result.Strategy] = append(t.returns[result.Strategy], result.ReturnPct)
}

// MaxDrawdown returns the drawdown of the compounded returns of a variant
func (t *Tracker) MaxDrawdown(name core.StrategyName) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return metric.CompoundedDrawdown(t.returns[name])
}

// Trades returns the number of recorded trades of a variant
func (t *Tracker) Trades(name core.StrategyName) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.returns[name])
}

// Reset forgets every recorded trade
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.returns = make(map[core.StrategyName][]float64)
}

// Restore replaces the history with a copy of another tracker's history
func (t *Tracker) Restore(from *Tracker) {
	from.mu.RLock()
	returns := make(map[core.StrategyName][]float64, len(from.returns))
	for name, values := range from.returns {
		returns[name] = slices.Clone(values)
	}
	from.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.returns = returns
}
