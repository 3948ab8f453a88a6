package risk

import "math"

// TrailingStop ratchets a long stop behind the highest price seen.
// It only arms once the position is ActivationATR in profit and never
// moves the stop down.
type TrailingStop struct {
	ActivationATR float64
	DistanceATR   float64
	Source        TrailingSource
}

// NewTrailingStop creates a trailing stop from the risk configuration
func NewTrailingStop(cfg Config) TrailingStop {
	return TrailingStop{
		ActivationATR: cfg.TrailingActivationATR,
		DistanceATR:   cfg.TrailingDistanceATR,
		Source:        cfg.TrailingSource,
	}
}

// Price returns the bar price that drives the trail
func (t TrailingStop) Price(high, close float64) float64 {
	if t.Source == TrailClose {
		return close
	}
	return high
}

// Active reports whether the trail has armed for a position
func (t TrailingStop) Active(entry, highest, atr float64) bool {
	return atr > 0 && highest-entry >= t.ActivationATR*atr
}

// Update returns the new highest price and stop after observing price.
// Once armed the stop is at least breakeven and never decreases.
func (t TrailingStop) Update(entry, stop, highest, atr, price float64) (float64, float64) {
	highest = math.Max(highest, price)
	if !t.Active(entry, highest, atr) {
		return highest, stop
	}

	trail := math.Max(highest-t.DistanceATR*atr, entry)
	return highest, math.Max(stop, trail)
}
