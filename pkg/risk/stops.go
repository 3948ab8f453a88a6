package risk

import (
	"math"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
)

// Levels are the protective and target prices of a long entry
type Levels struct {
	Entry       float64
	Stop        float64
	ATRStop     float64
	SupportStop float64 // zero when no support was found
	TP1         float64
	TP2         float64
	ATR         float64
}

// ATRMultiplier returns the stop distance in ATRs for a holding period
func (c Config) ATRMultiplier(holding core.Holding) float64 {
	if holding == core.HoldingIntraday {
		return c.ATRStopIntraday
	}
	return c.ATRStopSwing
}

// ATRStop returns entry minus the holding period multiple of ATR
func (c Config) ATRStop(entry, atr float64, holding core.Holding) float64 {
	return entry - c.ATRMultiplier(holding)*atr
}

// SupportStop places a stop just below the highest fractal low under entry.
// It needs at least SupportMinBars lows and only looks back SupportLookback bars.
func (c Config) SupportStop(lows []float64, entry float64) (float64, bool) {
	if len(lows) < c.SupportMinBars {
		return 0, false
	}

	support, ok := indicator.SupportBelow(lows, entry, c.SupportLookback, 2)
	if !ok {
		return 0, false
	}

	return support * c.SupportBuffer, true
}

// Levels computes stop and targets for a long entry. The tighter of the ATR
// and support stops wins, provided it sits below entry.
func (c Config) Levels(entry, atr float64, lows []float64, holding core.Holding) (Levels, error) {
	if math.IsNaN(atr) || atr <= 0 {
		return Levels{}, core.ErrInsufficientHistory
	}

	levels := Levels{
		Entry:   entry,
		ATR:     atr,
		ATRStop: c.ATRStop(entry, atr, holding),
		TP1:     entry + c.TP1ATR*atr,
		TP2:     entry + c.TP2ATR*atr,
	}
	levels.Stop = levels.ATRStop

	if support, ok := c.SupportStop(lows, entry); ok {
		levels.SupportStop = support
		if support > levels.Stop && support < entry {
			levels.Stop = support
		}
	}

	return levels, nil
}
