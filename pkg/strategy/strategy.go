// Package strategy holds the long-only strategy variants and picks the one
// with the best expected value for a scored setup.
package strategy

import "github.com/raykavin/tradeplan/pkg/core"

// Setup is what a variant sees when it is evaluated
type Setup struct {
	Snapshot core.Snapshot
	Score    float64
	Regime   core.Regime
}

// Evaluation is the outcome of one variant on one setup
type Evaluation struct {
	Name           core.StrategyName
	Triggered      bool
	WinProbability float64
	RewardPct      float64 // target distance as a fraction of entry
	RiskPct        float64 // stop distance as a fraction of entry
	CostPct        float64 // modelled round trip as a fraction of entry
	ExpectedValue  float64 // fraction of entry, net of costs
}

// Pick converts the evaluation into the candidate representation
func (e Evaluation) Pick(maxDrawdown float64) core.StrategyPick {
	return core.StrategyPick{
		Name:           e.Name,
		ExpectedValue:  e.ExpectedValue,
		WinProbability: e.WinProbability,
		RewardPct:      e.RewardPct,
		RiskPct:        e.RiskPct,
		MaxDrawdown:    maxDrawdown,
	}
}

type Variant interface {
	// Name identifies the variant in plans, audit logs and reports.
	Name() core.StrategyName
	// Evaluate checks the entry trigger on the setup and prices the trade with
	// the cost model. The boolean is false when the trigger is not met or the
	// setup lacks the indicators the variant needs.
	Evaluate(setup Setup, costs core.CostModel) (Evaluation, bool)
}
