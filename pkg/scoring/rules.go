package scoring

import (
	"fmt"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
)

// Input is what the scorer needs for one instrument at one bar
type Input struct {
	Snapshot core.Snapshot
	// Bars is the recent history ending at the snapshot bar, used for
	// candlestick and support detection
	Bars []core.Bar
}

// card accumulates the points of one category
type card struct {
	snapshot core.Snapshot
	points   float64
	reasons  []string
	refs     []core.Reference
}

func (c *card) value(name string) (float64, bool) {
	v, ok := c.snapshot.Value(name)
	if ok {
		c.refs = append(c.refs, core.Reference{Name: name, Value: v})
	}
	return v, ok
}

func (c *card) add(points float64, format string, args ...any) {
	c.points += points
	c.reasons = append(c.reasons, fmt.Sprintf(format, args...))
}

// rule scores one category; max is the points available at full weight
type rule struct {
	category core.Category
	max      float64
	score    func(c *card, in Input)
}

var rules = []rule{
	{category: core.CategoryTrend, max: 35, score: scoreTrend},
	{category: core.CategoryMomentum, max: 25, score: scoreMomentum},
	{category: core.CategoryVolume, max: 20, score: scoreVolume},
	{category: core.CategoryVolatility, max: 10, score: scoreVolatility},
	{category: core.CategoryPattern, max: 10, score: scorePattern},
}

func scoreTrend(c *card, in Input) {
	closePrice := in.Snapshot.Bar.Close

	for _, name := range []string{indicator.SMA20, indicator.SMA50, indicator.SMA200} {
		if sma, ok := c.value(name); ok && closePrice > sma {
			c.add(5, "close above %s", name)
		}
	}

	fast, okFast := c.value(indicator.EMA9)
	slow, okSlow := c.value(indicator.EMA21)
	if okFast && okSlow && fast > slow {
		c.add(5, "ema 9 above ema 21")
	}

	if hist, ok := c.value(indicator.MACDHist); ok && hist > 0 {
		c.add(5, "macd histogram positive")
		if c.snapshot.Rising(indicator.MACDHist) {
			c.add(2, "macd histogram rising")
		}
	}

	adx, okADX := c.value(indicator.ADXValue)
	plus, okPlus := c.value(indicator.PlusDIValue)
	minus, okMinus := c.value(indicator.MinusDIValue)
	if okADX && okPlus && okMinus && adx >= 25 && plus > minus {
		c.add(5, "adx %.1f with +di leading", adx)
	}

	if dir, ok := c.value(indicator.SuperTrendDir); ok && dir > 0 {
		c.add(3, "supertrend up")
	}
}

func scoreMomentum(c *card, _ Input) {
	if rsi, ok := c.value(indicator.RSIValue); ok {
		switch {
		case rsi >= 50 && rsi <= 70:
			c.add(8, "rsi %.1f in bullish zone", rsi)
		case rsi >= 40 && rsi < 50 && c.snapshot.Rising(indicator.RSIValue):
			c.add(5, "rsi %.1f recovering", rsi)
		}
	}

	k, okK := c.value(indicator.StochK)
	d, okD := c.value(indicator.StochD)
	if okK && okD && k > d && k < 80 {
		c.add(6, "stochastic %%k above %%d")
	}

	if roc, ok := c.value(indicator.ROCValue); ok && roc > 0 {
		c.add(4, "rate of change positive")
	}

	if wr, ok := c.value(indicator.WilliamsRValue); ok && wr > -80 && wr < -20 {
		c.add(3, "williams %%r neutral")
	}

	if mfi, ok := c.value(indicator.MFIValue); ok && mfi >= 40 && mfi <= 80 {
		c.add(4, "money flow %.1f", mfi)
	}
}

func scoreVolume(c *card, _ Input) {
	if ratio, ok := c.value(indicator.VolumeRatio); ok {
		switch {
		case ratio >= 1.5:
			c.add(10, "volume %.1fx average", ratio)
		case ratio >= 1.2:
			c.add(6, "volume %.1fx average", ratio)
		case ratio >= 1.0:
			c.add(3, "volume at average")
		}
	}

	if _, ok := c.value(indicator.OBVValue); ok && c.snapshot.Rising(indicator.OBVValue) {
		c.add(5, "obv rising")
	}

	if cmf, ok := c.value(indicator.CMFValue); ok && cmf > 0 {
		c.add(5, "chaikin money flow positive")
	}
}

// normalBandWidth is the Bollinger width under which volatility is not expanded
const normalBandWidth = 0.10

func scoreVolatility(c *card, _ Input) {
	if natr, ok := c.value(indicator.NATRValue); ok && natr >= 1 && natr <= 6 {
		c.add(6, "atr %.2f%% of price", natr)
	}

	squeeze, okSqueeze := c.value(indicator.SqueezeOn)
	width, okWidth := c.value(indicator.BBWidth)
	switch {
	case okSqueeze && squeeze == 1:
		c.add(4, "volatility squeeze")
	case okWidth && width < normalBandWidth:
		c.add(2, "normal band width")
	}
}

func scorePattern(c *card, in Input) {
	snapshot := in.Snapshot
	if best, ok := Strongest(DetectBullish(snapshot.Previous, snapshot.Bar)); ok {
		c.add(6*best.Strength, "%s (%.2f)", best.Name, best.Strength)
	}

	if prior, ok := c.value(indicator.DonchianPrior); ok && snapshot.Bar.Close > prior {
		c.add(4, "donchian breakout")
		return
	}

	atr, ok := c.value(indicator.ATRValue)
	if !ok || len(in.Bars) == 0 || snapshot.Bar.Close <= snapshot.Bar.Open {
		return
	}

	lows := make([]float64, len(in.Bars))
	for i, bar := range in.Bars {
		lows[i] = bar.Low
	}
	if support, found := indicator.SupportBelow(lows, snapshot.Bar.Close, 50, 2); found && snapshot.Bar.Close-support <= atr {
		c.refs = append(c.refs, core.Reference{Name: "support", Value: support})
		c.add(4, "bounce off support %.2f", support)
	}
}
