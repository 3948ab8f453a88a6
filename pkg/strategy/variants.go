package strategy

import (
	"math"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
)

// ReferenceNotional is the position value used to express the flat fee as a
// percentage when a variant is priced before sizing
const ReferenceNotional = 5000.0

// Profile holds the pricing parameters of a variant
type Profile struct {
	TargetATR      float64 `mapstructure:"target_atr" yaml:"target_atr"`
	StopATR        float64 `mapstructure:"stop_atr" yaml:"stop_atr"`
	WinProbability float64 `mapstructure:"win_probability" yaml:"win_probability"`
}

// family groups variants for regime adjustments
type family int

const (
	trendFollowing family = iota
	reverting
	expansion
)

// TriggerFunc reports whether a variant entry condition holds
type TriggerFunc func(s core.Snapshot) bool

// Rule is a Variant built from a trigger and a profile
type Rule struct {
	name    core.StrategyName
	family  family
	needs   []string
	trigger TriggerFunc
	profile Profile
}

// Name implements Variant.
func (r Rule) Name() core.StrategyName { return r.name }

// Profile returns the pricing parameters
func (r Rule) Profile() Profile { return r.profile }

// WithProfile returns a copy using different pricing parameters
func (r Rule) WithProfile(profile Profile) Rule {
	r.profile = profile
	return r
}

// Evaluate implements Variant.
func (r Rule) Evaluate(setup Setup, costs core.CostModel) (Evaluation, bool) {
	snapshot := setup.Snapshot
	if !snapshot.Has(r.needs...) || !snapshot.Has(indicator.ATRValue) || !r.trigger(snapshot) {
		return Evaluation{Name: r.name}, false
	}

	closePrice := snapshot.Bar.Close
	atr, _ := snapshot.Value(indicator.ATRValue)
	if closePrice <= 0 || atr <= 0 {
		return Evaluation{Name: r.name}, false
	}

	eval := Evaluation{
		Name:           r.name,
		Triggered:      true,
		WinProbability: r.probability(setup),
		RewardPct:      r.profile.TargetATR * atr / closePrice,
		RiskPct:        r.profile.StopATR * atr / closePrice,
		CostPct:        costs.RoundTripPct(ReferenceNotional),
	}
	eval.ExpectedValue = ExpectedValue(eval.WinProbability, eval.RewardPct, eval.RiskPct, eval.CostPct)
	return eval, true
}

// probability adjusts the base win rate for score and regime
func (r Rule) probability(setup Setup) float64 {
	p := r.profile.WinProbability + (setup.Score-65)/100*0.2

	switch r.family {
	case trendFollowing:
		switch setup.Regime {
		case core.RegimeStrongTrend, core.RegimeTrending:
			p += 0.05
		case core.RegimeChoppy:
			p -= 0.05
		}
	case reverting:
		switch setup.Regime {
		case core.RegimeChoppy:
			p += 0.05
		case core.RegimeStrongTrend:
			p -= 0.05
		}
	case expansion:
		if setup.Regime == core.RegimeBreakout {
			p += 0.05
		}
	}

	return math.Min(0.95, math.Max(0.05, p))
}

// ExpectedValue returns p*(reward-cost) - (1-p)*(risk+cost), all as fractions of entry
func ExpectedValue(p, reward, risk, cost float64) float64 {
	return p*(reward-cost) - (1-p)*(risk+cost)
}

func value(s core.Snapshot, name string) float64 {
	v, _ := s.Value(name)
	return v
}

// MomentumBreakout enters on a close above the prior 20 bar high with volume
func MomentumBreakout() Rule {
	return Rule{
		name:   core.StrategyMomentumBreakout,
		family: trendFollowing,
		needs:  []string{indicator.DonchianPrior, indicator.VolumeRatio},
		trigger: func(s core.Snapshot) bool {
			return s.Bar.Close > value(s, indicator.DonchianPrior) && value(s, indicator.VolumeRatio) >= 1.5
		},
		profile: Profile{TargetATR: 3, StopATR: 1.5, WinProbability: 0.45},
	}
}

// MeanReversion buys an oversold close at or under the lower Bollinger band
func MeanReversion() Rule {
	return Rule{
		name:   core.StrategyMeanReversion,
		family: reverting,
		needs:  []string{indicator.RSIValue, indicator.BBLower},
		trigger: func(s core.Snapshot) bool {
			return value(s, indicator.RSIValue) < 35 && s.Bar.Close <= value(s, indicator.BBLower)
		},
		profile: Profile{TargetATR: 2, StopATR: 1, WinProbability: 0.55},
	}
}

// EMACrossover enters when the fast EMA crosses above the slow one
func EMACrossover() Rule {
	return Rule{
		name:   core.StrategyEMACrossover,
		family: trendFollowing,
		needs:  []string{indicator.EMA9, indicator.EMA21},
		trigger: func(s core.Snapshot) bool {
			return s.CrossedAbove(indicator.EMA9, indicator.EMA21)
		},
		profile: Profile{TargetATR: 3, StopATR: 1.5, WinProbability: 0.42},
	}
}

// SqueezeBreakout enters when a volatility squeeze releases with the close above the mid band
func SqueezeBreakout() Rule {
	return Rule{
		name:   core.StrategySqueezeBreakout,
		family: expansion,
		needs:  []string{indicator.SqueezeOn, indicator.BBMiddle},
		trigger: func(s core.Snapshot) bool {
			prev, ok := s.Prev(indicator.SqueezeOn)
			return ok && prev == 1 && value(s, indicator.SqueezeOn) == 0 && s.Bar.Close > value(s, indicator.BBMiddle)
		},
		profile: Profile{TargetATR: 3.5, StopATR: 1.5, WinProbability: 0.43},
	}
}

// VWAPReversion buys a close stretched at least 1.5% under the rolling VWAP
func VWAPReversion() Rule {
	return Rule{
		name:   core.StrategyVWAPReversion,
		family: reverting,
		needs:  []string{indicator.VWAPValue, indicator.RSIValue},
		trigger: func(s core.Snapshot) bool {
			vwap := value(s, indicator.VWAPValue)
			return vwap > 0 && s.Bar.Close <= vwap*(1-0.015) && value(s, indicator.RSIValue) < 45
		},
		profile: Profile{TargetATR: 1.5, StopATR: 1, WinProbability: 0.55},
	}
}

// GapFill buys a down gap of at least 2% that closes above its open
func GapFill() Rule {
	return Rule{
		name:   core.StrategyGapFill,
		family: reverting,
		trigger: func(s core.Snapshot) bool {
			prevClose := s.Previous.Close
			return prevClose > 0 && s.Bar.Open <= prevClose*(1-0.02) && s.Bar.Close > s.Bar.Open
		},
		profile: Profile{TargetATR: 2, StopATR: 1, WinProbability: 0.52},
	}
}

// DefaultVariants returns the six variants in a fixed order
func DefaultVariants() []Variant {
	return []Variant{
		MomentumBreakout(),
		MeanReversion(),
		EMACrossover(),
		SqueezeBreakout(),
		VWAPReversion(),
		GapFill(),
	}
}
