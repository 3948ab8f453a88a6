package indicator

import "math"

// Indicators below are not available in talib. Every output has the input
// length and holds NaN wherever the value is undefined.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return math.NaN()
	}
	return num / den
}

// SuperTrend calculates the SuperTrend band and its direction (1 up, -1 down)
// Parameters:
//   - high, low, close: price slices of the same length
//   - atrPeriod: period for Average True Range calculation
//   - factor: multiplier for the ATR
func SuperTrend(high, low, close []float64, atrPeriod int, factor float64) ([]float64, []float64) {
	length := len(close)
	value := nanSeries(length)
	direction := nanSeries(length)
	if length <= atrPeriod {
		return value, direction
	}

	atr := ATR(high, low, close, atrPeriod)
	finalUpperBand := make([]float64, length)
	finalLowerBand := make([]float64, length)

	for i := atrPeriod; i < length; i++ {
		median := (high[i] + low[i]) / 2.0
		basicUpperBand := median + atr[i]*factor
		basicLowerBand := median - atr[i]*factor

		if i == atrPeriod {
			finalUpperBand[i], finalLowerBand[i] = basicUpperBand, basicLowerBand
			if close[i] > median {
				direction[i], value[i] = 1, basicLowerBand
			} else {
				direction[i], value[i] = -1, basicUpperBand
			}
			continue
		}

		// Bands only tighten while price stays inside them
		finalUpperBand[i] = basicUpperBand
		if basicUpperBand > finalUpperBand[i-1] && close[i-1] <= finalUpperBand[i-1] {
			finalUpperBand[i] = finalUpperBand[i-1]
		}
		finalLowerBand[i] = basicLowerBand
		if basicLowerBand < finalLowerBand[i-1] && close[i-1] >= finalLowerBand[i-1] {
			finalLowerBand[i] = finalLowerBand[i-1]
		}

		switch {
		case direction[i-1] < 0 && close[i] > finalUpperBand[i]:
			direction[i] = 1
		case direction[i-1] > 0 && close[i] < finalLowerBand[i]:
			direction[i] = -1
		default:
			direction[i] = direction[i-1]
		}

		if direction[i] > 0 {
			value[i] = finalLowerBand[i]
		} else {
			value[i] = finalUpperBand[i]
		}
	}

	return value, direction
}

// Keltner calculates Keltner Channels around an EMA of the close
// Returns upper, middle and lower bands
func Keltner(high, low, close []float64, period int, multiplier float64) ([]float64, []float64, []float64) {
	length := len(close)
	upper, middle, lower := nanSeries(length), nanSeries(length), nanSeries(length)
	if length <= period {
		return upper, middle, lower
	}

	ema := EMA(close, period)
	atr := ATR(high, low, close, period)
	for i := period; i < length; i++ {
		middle[i] = ema[i]
		upper[i] = ema[i] + multiplier*atr[i]
		lower[i] = ema[i] - multiplier*atr[i]
	}
	return upper, middle, lower
}

// Donchian calculates the highest high and lowest low over period, current bar included
func Donchian(high, low []float64, period int) ([]float64, []float64) {
	length := len(high)
	upper, lower := nanSeries(length), nanSeries(length)
	if length < period {
		return upper, lower
	}

	maxHigh := Max(high, period)
	minLow := Min(low, period)
	for i := period - 1; i < length; i++ {
		upper[i] = maxHigh[i]
		lower[i] = minLow[i]
	}
	return upper, lower
}

// PriorHigh returns the highest high of the period bars before each bar
func PriorHigh(high []float64, period int) []float64 {
	length := len(high)
	out := nanSeries(length)
	if length <= period {
		return out
	}

	maxHigh := Max(high, period)
	for i := period; i < length; i++ {
		out[i] = maxHigh[i-1]
	}
	return out
}

// MidRange returns the midpoint of the highest high and lowest low over period
func MidRange(high, low []float64, period int) []float64 {
	upper, lower := Donchian(high, low, period)
	out := nanSeries(len(high))
	for i := range out {
		out[i] = (upper[i] + lower[i]) / 2
	}
	return out
}

// Ichimoku calculates the conversion and base lines and the two leading spans.
// Leading spans are plotted kijun bars ahead, so the value at bar i uses data up
// to bar i-kijun. The lagging span is not produced since it reads future bars.
func Ichimoku(high, low []float64, tenkan, kijun, senkouB int) ([]float64, []float64, []float64, []float64) {
	length := len(high)
	conversion := MidRange(high, low, tenkan)
	base := MidRange(high, low, kijun)
	longMid := MidRange(high, low, senkouB)

	spanA, spanB := nanSeries(length), nanSeries(length)
	for i := kijun; i < length; i++ {
		spanA[i] = (conversion[i-kijun] + base[i-kijun]) / 2
		spanB[i] = longMid[i-kijun]
	}
	return conversion, base, spanA, spanB
}

// VWAP calculates a rolling volume weighted average of the typical price
func VWAP(high, low, close, volume []float64, period int) []float64 {
	length := len(close)
	out := nanSeries(length)

	var priceVolume, totalVolume float64
	for i := 0; i < length; i++ {
		priceVolume += (high[i] + low[i] + close[i]) / 3 * volume[i]
		totalVolume += volume[i]
		if i >= period {
			j := i - period
			priceVolume -= (high[j] + low[j] + close[j]) / 3 * volume[j]
			totalVolume -= volume[j]
		}
		if i >= period-1 {
			out[i] = safeDiv(priceVolume, totalVolume)
		}
	}
	return out
}

// CMF calculates Chaikin Money Flow over period
func CMF(high, low, close, volume []float64, period int) []float64 {
	length := len(close)
	out := nanSeries(length)

	flow := make([]float64, length)
	for i := range flow {
		clv := safeDiv((close[i]-low[i])-(high[i]-close[i]), high[i]-low[i])
		if math.IsNaN(clv) {
			clv = 0
		}
		flow[i] = clv * volume[i]
	}

	var flowSum, volumeSum float64
	for i := 0; i < length; i++ {
		flowSum += flow[i]
		volumeSum += volume[i]
		if i >= period {
			flowSum -= flow[i-period]
			volumeSum -= volume[i-period]
		}
		if i >= period-1 {
			out[i] = safeDiv(flowSum, volumeSum)
		}
	}
	return out
}

// BandWidth returns (upper - lower) / middle for each bar
func BandWidth(upper, middle, lower []float64) []float64 {
	out := make([]float64, len(middle))
	for i := range out {
		out[i] = safeDiv(upper[i]-lower[i], middle[i])
	}
	return out
}

// PercentB returns the position of the close inside the bands, 0 at the lower band
func PercentB(close, upper, lower []float64) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = safeDiv(close[i]-lower[i], upper[i]-lower[i])
	}
	return out
}

// Squeeze flags bars whose Bollinger Bands sit inside the Keltner Channels (1 on, 0 off)
func Squeeze(bbUpper, bbLower, kcUpper, kcLower []float64) []float64 {
	out := nanSeries(len(bbUpper))
	for i := range out {
		if math.IsNaN(kcUpper[i]) || math.IsNaN(kcLower[i]) {
			continue
		}
		if bbUpper[i] < kcUpper[i] && bbLower[i] > kcLower[i] {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return out
}

// Ratio divides two series element-wise, NaN where the divisor is zero
func Ratio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range out {
		out[i] = safeDiv(num[i], den[i])
	}
	return out
}

// DollarVolume returns close times volume
func DollarVolume(close, volume []float64) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = close[i] * volume[i]
	}
	return out
}
