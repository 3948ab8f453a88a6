package indicator

import "github.com/raykavin/tradeplan/pkg/core"

// FractalLows returns the indexes of swing lows: bars whose low is strictly
// below the lows of the width bars on each side. The last width bars can not
// qualify because their right side is not known yet.
func FractalLows(low []float64, width int) []int {
	var found []int
	for i := width; i < len(low)-width; i++ {
		pivot := true
		for k := 1; k <= width && pivot; k++ {
			pivot = low[i] < low[i-k] && low[i] < low[i+k]
		}
		if pivot {
			found = append(found, i)
		}
	}
	return found
}

// SupportBelow returns the highest swing low strictly below price among the
// last lookback lows.
func SupportBelow(low []float64, price float64, lookback, width int) (float64, bool) {
	window := core.Series[float64](low).LastValues(lookback)
	if len(window) == 0 || window.Lowest(len(window)) >= price {
		return 0, false
	}

	best, ok := 0.0, false
	for _, i := range FractalLows(window, width) {
		if window[i] < price && (!ok || window[i] > best) {
			best, ok = window[i], true
		}
	}
	return best, ok
}
