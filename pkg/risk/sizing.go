package risk

import (
	"github.com/shopspring/decimal"
)

// PositionSize returns floor(equity * riskFraction / (entry - stop)).
// Arithmetic runs in decimal so exact ratios never round down a share.
func PositionSize(equity, riskFraction, entry, stop float64) int64 {
	perShare := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop))
	if !perShare.IsPositive() || equity <= 0 || riskFraction <= 0 {
		return 0
	}

	budget := decimal.NewFromFloat(equity).Mul(decimal.NewFromFloat(riskFraction))
	return budget.Div(perShare).Floor().IntPart()
}

// SharesWithin returns the largest share count whose value at price stays within limit
func SharesWithin(limit, price float64) int64 {
	if limit <= 0 || price <= 0 {
		return 0
	}
	return decimal.NewFromFloat(limit).Div(decimal.NewFromFloat(price)).Floor().IntPart()
}

// RewardRisk returns the net reward:risk of a plan targeting tp2.
// Round trip costs reduce the reward.
func RewardRisk(entry, stop, target, costPerShare float64) float64 {
	risk := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop))
	if !risk.IsPositive() {
		return 0
	}

	reward := decimal.NewFromFloat(target).
		Sub(decimal.NewFromFloat(entry)).
		Sub(decimal.NewFromFloat(costPerShare))

	ratio, _ := reward.Div(risk).Round(8).Float64()
	return ratio
}
