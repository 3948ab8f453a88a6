package indicator

import "github.com/markcheno/go-talib"

// MaType represents moving average type
type MaType = talib.MaType

// Moving average type constants
const (
	TypeSMA = talib.SMA // Simple Moving Average
	TypeEMA = talib.EMA // Exponential Moving Average
	TypeWMA = talib.WMA // Weighted Moving Average
)

// ------------------------------------------
// Overlap Studies (Moving Averages, Bands)
// ------------------------------------------

// BB calculates Bollinger Bands
// Returns upper, middle, and lower bands
func BB(input []float64, period int, deviation float64, maType MaType) ([]float64, []float64, []float64) {
	return talib.BBands(input, period, deviation, deviation, maType)
}

// EMA calculates Exponential Moving Average
func EMA(input []float64, period int) []float64 {
	return talib.Ema(input, period)
}

// SAR calculates Parabolic SAR (Stop And Reverse)
func SAR(high []float64, low []float64, acceleration float64, maximum float64) []float64 {
	return talib.Sar(high, low, acceleration, maximum)
}

// SMA calculates Simple Moving Average
func SMA(input []float64, period int) []float64 {
	return talib.Sma(input, period)
}

// ---------------------------------------
// Momentum Indicators
// ---------------------------------------

// ADX calculates Average Directional Movement Index
func ADX(high []float64, low []float64, close []float64, period int) []float64 {
	return talib.Adx(high, low, close, period)
}

// CCI calculates Commodity Channel Index
func CCI(high []float64, low []float64, close []float64, period int) []float64 {
	return talib.Cci(high, low, close, period)
}

// MACD calculates Moving Average Convergence/Divergence
// Returns MACD, signal, and histogram
func MACD(input []float64, fastPeriod int, slowPeriod int, signalPeriod int) ([]float64, []float64, []float64) {
	return talib.Macd(input, fastPeriod, slowPeriod, signalPeriod)
}

// MinusDI calculates Minus Directional Indicator
func MinusDI(high []float64, low []float64, close []float64, period int) []float64 {
	return talib.MinusDI(high, low, close, period)
}

// MFI calculates Money Flow Index
func MFI(high []float64, low []float64, close []float64, volume []float64, period int) []float64 {
	return talib.Mfi(high, low, close, volume, period)
}

// PlusDI calculates Plus Directional Indicator
func PlusDI(high []float64, low []float64, close []float64, period int) []float64 {
	return talib.PlusDI(high, low, close, period)
}

// ROC calculates Rate of change : ((price/prevPrice)-1)*100
func ROC(input []float64, period int) []float64 {
	return talib.Roc(input, period)
}

// RSI calculates Relative Strength Index
func RSI(input []float64, period int) []float64 {
	return talib.Rsi(input, period)
}

// Stoch calculates Slow Stochastic Indicator
// Returns slowK and slowD
func Stoch(high []float64, low []float64, close []float64, fastKPeriod int, slowKPeriod int,
	slowKMAType MaType, slowDPeriod int, slowDMAType MaType) ([]float64, []float64) {
	return talib.Stoch(high, low, close, fastKPeriod, slowKPeriod, slowKMAType, slowDPeriod, slowDMAType)
}

// WilliamsR calculates Williams' %R
func WilliamsR(high []float64, low []float64, close []float64, period int) []float64 {
	return talib.WillR(high, low, close, period)
}

// ---------------------------------------
// Volume Indicators
// ---------------------------------------

// Ad calculates Chaikin A/D Line
func Ad(high []float64, low []float64, close []float64, volume []float64) []float64 {
	return talib.Ad(high, low, close, volume)
}

// OBV calculates On Balance Volume
func OBV(input []float64, volume []float64) []float64 {
	return talib.Obv(input, volume)
}

// ---------------------------------------
// Volatility Indicators
// ---------------------------------------

// ATR calculates Average True Range
func ATR(high []float64, low []float64, close []float64, period int) []float64 {
	return talib.Atr(high, low, close, period)
}

// NATR calculates Normalized Average True Range
func NATR(high []float64, low []float64, close []float64, period int) []float64 {
	return talib.Natr(high, low, close, period)
}

// ---------------------------------------
// Math Operator Functions
// ---------------------------------------

// Max calculates highest value over a specified period
func Max(input []float64, period int) []float64 {
	return talib.Max(input, period)
}

// Min calculates lowest value over a specified period
func Min(input []float64, period int) []float64 {
	return talib.Min(input, period)
}
