// Package metric holds the trade and equity statistics used by the validator
package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualises per-bar ratios of daily data
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev calculates the sample standard deviation, zero for fewer than two values
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// CoefficientOfVariation returns stddev / |mean|, +Inf when the mean is zero
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return math.Inf(1)
	}
	return StdDev(values) / math.Abs(mean)
}

// Payoff calculates the ratio of average wins to average losses.
// Returns the absolute value of the ratio.
func Payoff(values []float64) float64 {
	wins, losses := partitionTradeResults(values)

	if len(wins) == 0 {
		return 0
	}

	if len(losses) == 0 {
		return 10 // Default value when no losses
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 10
	}

	return math.Abs(stat.Mean(wins, nil) / avgLoss)
}

// ProfitFactor calculates the ratio of gross profit to gross loss.
// A record without losses reports 10.
func ProfitFactor(values []float64) float64 {
	var (
		totalWins   float64
		totalLosses float64
	)

	for _, value := range values {
		if value > 0 {
			totalWins += value
		} else {
			totalLosses += value
		}
	}

	if totalWins == 0 {
		return 0
	}

	if totalLosses == 0 {
		return 10 // Default value when no losses
	}

	return math.Abs(totalWins / totalLosses)
}

// Returns converts an equity curve into simple per-step returns
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

// Sharpe returns the annualised Sharpe ratio of per-bar returns (zero risk-free rate)
func Sharpe(returns []float64) float64 {
	std := StdDev(returns)
	if std == 0 {
		return 0
	}
	return Mean(returns) / std * math.Sqrt(TradingDaysPerYear)
}

// Sortino returns the annualised Sortino ratio of per-bar returns.
// Downside deviation is taken over all returns with gains counted as zero.
func Sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var downside float64
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}

	deviation := math.Sqrt(downside / float64(len(returns)))
	if deviation == 0 {
		return 0
	}

	return Mean(returns) / deviation * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown returns the largest peak to trough decline of an equity curve
// as a positive fraction of the peak
func MaxDrawdown(equity []float64) float64 {
	var peak, drawdown float64
	for _, value := range equity {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			drawdown = math.Max(drawdown, (peak-value)/peak)
		}
	}
	return drawdown
}

// CompoundedDrawdown returns the max drawdown of the curve obtained by
// compounding a sequence of fractional returns from 1
func CompoundedDrawdown(returns []float64) float64 {
	curve := make([]float64, 0, len(returns)+1)
	curve = append(curve, 1)
	for _, r := range returns {
		curve = append(curve, curve[len(curve)-1]*(1+r))
	}
	return MaxDrawdown(curve)
}

// partitionTradeResults separates trading results into wins and losses.
func partitionTradeResults(values []float64) (wins []float64, losses []float64) {
	for _, value := range values {
		if value > 0 {
			wins = append(wins, value)
		} else {
			losses = append(losses, math.Abs(value)) // Store absolute values of losses
		}
	}
	return wins, losses
}
