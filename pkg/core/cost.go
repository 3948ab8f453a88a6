package core

// CostModel describes the trading frictions applied to every order.
// Percentages are fractions (0.0005 = 0.05%).
type CostModel struct {
	FlatFee     float64 `mapstructure:"flat_fee" yaml:"flat_fee"`
	SpreadPct   float64 `mapstructure:"spread_pct" yaml:"spread_pct"`
	FXPct       float64 `mapstructure:"fx_pct" yaml:"fx_pct"`
	SlippagePct float64 `mapstructure:"slippage_pct" yaml:"slippage_pct"`
}

// PercentPerSide is the proportional cost of one order
func (c CostModel) PercentPerSide() float64 {
	return c.SpreadPct + c.FXPct + c.SlippagePct
}

// OrderFee is the cash charged for an order of the given value.
// Slippage is excluded because it is applied to the fill price.
func (c CostModel) OrderFee(value float64) float64 {
	return c.FlatFee + value*(c.SpreadPct+c.FXPct)
}

// RoundTripPerShare is the modelled cost of entering and leaving one share
func (c CostModel) RoundTripPerShare(entry float64, shares int64) float64 {
	perShare := entry * 2 * c.PercentPerSide()
	if shares > 0 {
		perShare += 2 * c.FlatFee / float64(shares)
	}
	return perShare
}

// RoundTripPct is the round trip cost as a fraction of a notional amount
func (c CostModel) RoundTripPct(notional float64) float64 {
	pct := 2 * c.PercentPerSide()
	if notional > 0 {
		pct += 2 * c.FlatFee / notional
	}
	return pct
}

// BuyFill returns the execution price of a buy after slippage
func (c CostModel) BuyFill(price float64) float64 {
	return price * (1 + c.SlippagePct)
}

// SellFill returns the execution price of a sell after slippage
func (c CostModel) SellFill(price float64) float64 {
	return price * (1 - c.SlippagePct)
}

// DefaultCostModel returns a 1.0 flat fee, 0.05% spread, no FX and 0.05% slippage
func DefaultCostModel() CostModel {
	return CostModel{FlatFee: 1.0, SpreadPct: 0.0005, FXPct: 0, SlippagePct: 0.0005}
}
