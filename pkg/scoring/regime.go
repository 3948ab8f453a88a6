package scoring

import (
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
)

// RegimeThresholds configures market regime detection
type RegimeThresholds struct {
	StrongADX    float64 `mapstructure:"strong_adx" yaml:"strong_adx"`
	TrendingADX  float64 `mapstructure:"trending_adx" yaml:"trending_adx"`
	ChoppyADX    float64 `mapstructure:"choppy_adx" yaml:"choppy_adx"`
	MaxATRPct    float64 `mapstructure:"max_atr_pct" yaml:"max_atr_pct"`
	SqueezeWidth float64 `mapstructure:"squeeze_width" yaml:"squeeze_width"`
}

// DefaultRegimeThresholds returns ADX 30/25/20, ATR 2.5% and a 2% band width
func DefaultRegimeThresholds() RegimeThresholds {
	return RegimeThresholds{StrongADX: 30, TrendingADX: 25, ChoppyADX: 20, MaxATRPct: 2.5, SqueezeWidth: 0.02}
}

func valueOr(s core.Snapshot, name string, fallback float64) float64 {
	if v, ok := s.Value(name); ok {
		return v
	}
	return fallback
}

// uptrend reports a close above both the 50 and 200 bar averages.
// The 50 bar average stands in while the 200 bar one is undefined.
func uptrend(s core.Snapshot) bool {
	sma50, ok := s.Value(indicator.SMA50)
	if !ok {
		return false
	}
	sma200 := valueOr(s, indicator.SMA200, sma50)
	return s.Bar.Close > sma50 && s.Bar.Close > sma200
}

// DetectRegime classifies the market condition of a snapshot
func (t RegimeThresholds) DetectRegime(s core.Snapshot) core.Regime {
	adx := valueOr(s, indicator.ADXValue, 20)
	atrPct := valueOr(s, indicator.NATRValue, 1)
	width := valueOr(s, indicator.BBWidth, 0.05)

	switch {
	case adx > t.StrongADX && uptrend(s) && atrPct < t.MaxATRPct:
		return core.RegimeStrongTrend
	case width < t.SqueezeWidth && adx < t.ChoppyADX:
		return core.RegimeBreakout
	case adx > t.TrendingADX:
		return core.RegimeTrending
	default:
		return core.RegimeChoppy
	}
}
