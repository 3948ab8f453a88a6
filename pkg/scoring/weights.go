package scoring

import (
	"fmt"
	"math"

	"github.com/raykavin/tradeplan/pkg/core"
)

// Weights are the maximum points of each category. They must sum to 100.
type Weights struct {
	Trend      float64 `mapstructure:"trend" yaml:"trend"`
	Momentum   float64 `mapstructure:"momentum" yaml:"momentum"`
	Volume     float64 `mapstructure:"volume" yaml:"volume"`
	Volatility float64 `mapstructure:"volatility" yaml:"volatility"`
	Pattern    float64 `mapstructure:"pattern" yaml:"pattern"`
}

// DefaultWeights returns 35/25/20/10/10
func DefaultWeights() Weights {
	return Weights{Trend: 35, Momentum: 25, Volume: 20, Volatility: 10, Pattern: 10}
}

// Of returns the weight of a category
func (w Weights) Of(category core.Category) float64 {
	switch category {
	case core.CategoryTrend:
		return w.Trend
	case core.CategoryMomentum:
		return w.Momentum
	case core.CategoryVolume:
		return w.Volume
	case core.CategoryVolatility:
		return w.Volatility
	case core.CategoryPattern:
		return w.Pattern
	}
	return 0
}

// Validate checks the weights are non-negative and sum to 100
func (w Weights) Validate() error {
	total := 0.0
	for _, category := range core.Categories {
		weight := w.Of(category)
		if weight < 0 {
			return fmt.Errorf("%s weight is negative: %w", category, core.ErrNegativeValue)
		}
		total += weight
	}
	if math.Abs(total-100) > 1e-9 {
		return fmt.Errorf("category weights sum to %.2f, want 100", total)
	}
	return nil
}

// Tiers are the composite score thresholds
type Tiers struct {
	Strong   float64 `mapstructure:"strong" yaml:"strong"`
	Moderate float64 `mapstructure:"moderate" yaml:"moderate"`
	Weak     float64 `mapstructure:"weak" yaml:"weak"`
}

// DefaultTiers returns 80/65/50
func DefaultTiers() Tiers {
	return Tiers{Strong: 80, Moderate: 65, Weak: 50}
}

// Validate checks the thresholds are strictly decreasing
func (t Tiers) Validate() error {
	if !(t.Strong > t.Moderate && t.Moderate > t.Weak && t.Weak >= 0) {
		return fmt.Errorf("tier thresholds must decrease: strong %.1f, moderate %.1f, weak %.1f",
			t.Strong, t.Moderate, t.Weak)
	}
	return nil
}

// Classify maps a score to its tier. The boolean is false below the weak threshold.
func (t Tiers) Classify(score float64) (core.Tier, bool) {
	switch {
	case score >= t.Strong:
		return core.TierStrong, true
	case score >= t.Moderate:
		return core.TierModerate, true
	case score >= t.Weak:
		return core.TierWeak, true
	default:
		return "", false
	}
}
