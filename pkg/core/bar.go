package core

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV period of a single instrument. Bars are immutable once recorded.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Range returns the high-low distance of the bar
func (b Bar) Range() float64 { return b.High - b.Low }

// Typical returns the typical price (high+low+close)/3
func (b Bar) Typical() float64 { return (b.High + b.Low + b.Close) / 3 }

// IsEmpty checks if the bar carries no data
func (b Bar) IsEmpty() bool { return b.Symbol == "" && b.Close == 0 && b.Open == 0 && b.Volume == 0 }

// Validate checks price/volume positivity and OHLC consistency.
func (b Bar) Validate() error {
	values := []float64{b.Open, b.High, b.Low, b.Close}
	for _, v := range values {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s at %s has non-positive price", ErrInvalidBar, b.Symbol, b.Time.Format(time.RFC3339))
		}
	}

	if b.Volume <= 0 || math.IsNaN(b.Volume) {
		return fmt.Errorf("%w: %s at %s has non-positive volume", ErrInvalidBar, b.Symbol, b.Time.Format(time.RFC3339))
	}

	if b.High < b.Low || b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("%w: %s at %s has inconsistent high/low", ErrInvalidBar, b.Symbol, b.Time.Format(time.RFC3339))
	}

	return nil
}

// Less orders bars on the global clock: time first, then symbol.
func (b Bar) Less(j Item) bool {
	other := j.(Bar)

	if !b.Time.Equal(other.Time) {
		return b.Time.Before(other.Time)
	}

	return b.Symbol < other.Symbol
}

// ValidateBars checks every bar and enforces strictly increasing timestamps.
func ValidateBars(bars []Bar) error {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return err
		}

		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return fmt.Errorf("%w: %s timestamp %s is not after %s", ErrInvalidBar, bar.Symbol,
				bar.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}

	return nil
}

// CheckSymbol verifies that every bar belongs to symbol. Bars with an empty
// or foreign symbol would otherwise be routed to the wrong instrument.
func CheckSymbol(symbol string, bars []Bar) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty instrument symbol", ErrInvalidBar)
	}

	for _, bar := range bars {
		if bar.Symbol != symbol {
			return fmt.Errorf("%w: bar at %s carries symbol %q, expected %q", ErrInvalidBar,
				bar.Time.Format(time.RFC3339), bar.Symbol, symbol)
		}
	}

	return nil
}
