package core

import "time"

// Tier classifies a composite score
type Tier string

const (
	TierStrong   Tier = "STRONG"
	TierModerate Tier = "MODERATE"
	TierWeak     Tier = "WEAK"
)

// Category is one of the scoring dimensions
type Category string

const (
	CategoryTrend      Category = "trend"
	CategoryMomentum   Category = "momentum"
	CategoryVolume     Category = "volume"
	CategoryVolatility Category = "volatility"
	CategoryPattern    Category = "pattern"
)

// Categories lists the scoring dimensions in report order
var Categories = []Category{
	CategoryTrend,
	CategoryMomentum,
	CategoryVolume,
	CategoryVolatility,
	CategoryPattern,
}

// StrategyName identifies a strategy variant
type StrategyName string

const (
	StrategyMomentumBreakout StrategyName = "momentum_breakout"
	StrategyMeanReversion    StrategyName = "mean_reversion"
	StrategyEMACrossover     StrategyName = "ema_crossover"
	StrategySqueezeBreakout  StrategyName = "squeeze_breakout"
	StrategyVWAPReversion    StrategyName = "vwap_reversion"
	StrategyGapFill          StrategyName = "gap_fill"
)

// Regime is the market condition detected from trend strength and band width
type Regime string

const (
	RegimeStrongTrend Regime = "strong_trend"
	RegimeTrending    Regime = "trending"
	RegimeBreakout    Regime = "breakout"
	RegimeChoppy      Regime = "choppy"
)

// SubScore is the contribution of one category to the composite score
type SubScore struct {
	Category Category
	Score    float64
	Weight   float64
	Reasons  []string
}

// StrategyPick is a strategy variant evaluated against a snapshot
type StrategyPick struct {
	Name           StrategyName
	ExpectedValue  float64 // fraction of entry, net of costs
	WinProbability float64
	RewardPct      float64
	RiskPct        float64
	MaxDrawdown    float64 // historical, used for tie-breaks
}

// Reference is an indicator value that took part in a decision
type Reference struct {
	Name  string
	Value float64
}

// ScoredCandidate is the output of the scoring engine for one instrument and bar
type ScoredCandidate struct {
	Symbol      string
	Time        time.Time
	Score       float64
	Tier        Tier
	SubScores   []SubScore
	Strategy    StrategyPick
	Alternative *StrategyPick
	Regime      Regime
	References  []Reference
	Snapshot    Snapshot
}

// SubScore returns the score of a category, zero when missing
func (c ScoredCandidate) SubScore(category Category) float64 {
	for _, sub := range c.SubScores {
		if sub.Category == category {
			return sub.Score
		}
	}
	return 0
}

// Close returns the close of the bar that produced the candidate
func (c ScoredCandidate) Close() float64 {
	return c.Snapshot.Bar.Close
}
