package backtest

import (
	"fmt"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/risk"
)

// FillSimulator executes pending plans at the open of the next bar of their
// symbol, with slippage applied by the cost model
type FillSimulator struct {
	exits risk.ExitManager
}

// NewFillSimulator creates a fill simulator over the risk exit manager
func NewFillSimulator(exits risk.ExitManager) FillSimulator {
	return FillSimulator{exits: exits}
}

// Fill opens a position from plan at bar. A bar that is not strictly after
// the signal bar is a look-ahead violation.
func (f FillSimulator) Fill(plan core.TradePlan, bar core.Bar) (core.Position, risk.Fill, error) {
	if bar.Symbol != plan.Symbol {
		return core.Position{}, risk.Fill{}, fmt.Errorf("fill bar %s does not match plan %s", bar.Symbol, plan.Symbol)
	}
	if !bar.Time.After(plan.Time) {
		return core.Position{}, risk.Fill{}, fmt.Errorf("%w: %s signal at %s filled at %s", core.ErrLookAheadViolation,
			plan.Symbol, plan.Time.Format(time.RFC3339), bar.Time.Format(time.RFC3339))
	}
	return f.exits.Open(plan, bar)
}
