package core

import "time"

// Holding selects the ATR stop multiplier
type Holding string

const (
	HoldingSwing    Holding = "swing"
	HoldingIntraday Holding = "intraday"
)

// TradePlan is an accepted, immutable long setup ready for execution.
// A plan only exists when its reward:risk clears the configured minimum.
type TradePlan struct {
	Symbol   string
	Sector   string
	Time     time.Time // signal bar
	Strategy StrategyName
	Score    float64
	Tier     Tier
	Holding  Holding

	Entry float64
	Stop  float64
	TP1   float64
	TP2   float64
	ATR   float64

	Shares        int64
	RewardRisk    float64
	RiskAmount    float64
	RoundTripCost float64

	// Paper is set while the account is restricted to simulated trading
	Paper bool
}

// PositionValue returns the notional value of the plan at entry
func (p TradePlan) PositionValue() float64 {
	return p.Entry * float64(p.Shares)
}

// RiskPerShare returns the entry to stop distance
func (p TradePlan) RiskPerShare() float64 {
	return p.Entry - p.Stop
}
