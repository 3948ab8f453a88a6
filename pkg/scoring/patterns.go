package scoring

import (
	"math"

	"github.com/raykavin/tradeplan/pkg/core"
)

// PatternName identifies a bullish candlestick pattern
type PatternName string

const (
	PatternHammer        PatternName = "hammer"
	PatternBullEngulfing PatternName = "bullish_engulfing"
	PatternPiercing      PatternName = "piercing_line"
	PatternMarubozu      PatternName = "bullish_marubozu"
)

// Pattern is a detected candlestick pattern with a strength in [0, 1]
type Pattern struct {
	Name     PatternName
	Strength float64
}

const (
	dojiMaxBodyPct = 0.10

	hammerLowerMin = 0.60 // long lower wick
	hammerUpperMax = 0.15 // small upper wick
	hammerBodyMin  = 0.15

	marubozuBodyMin = 0.80
	marubozuWickMax = 0.10

	engulfBodyRatio = 1.20 // body2 >= 1.2 * body1 for leniency
)

type candleParts struct {
	Body                        float64
	BodyPct, UpperPct, LowerPct float64
	IsBull, IsBear, IsDoji      bool
}

func split(bar core.Bar) candleParts {
	tr := bar.High - bar.Low
	if tr <= 0 {
		tr = 1e-9
	}
	body := math.Abs(bar.Close - bar.Open)

	parts := candleParts{
		Body:     body,
		BodyPct:  body / tr,
		UpperPct: (bar.High - math.Max(bar.Close, bar.Open)) / tr,
		LowerPct: (math.Min(bar.Close, bar.Open) - bar.Low) / tr,
		IsBull:   bar.Close > bar.Open,
		IsBear:   bar.Open > bar.Close,
	}
	parts.IsDoji = parts.BodyPct <= dojiMaxBodyPct
	return parts
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func matchHammer(cp candleParts) (bool, float64) {
	if cp.IsDoji || cp.BodyPct < hammerBodyMin || cp.LowerPct < hammerLowerMin || cp.UpperPct > hammerUpperMax {
		return false, 0
	}

	// longer lower wick and a decent body
	s := 0.6*clamp01((cp.LowerPct-hammerLowerMin)/(1.0-hammerLowerMin)) +
		0.4*clamp01((cp.BodyPct-hammerBodyMin)/(1.0-hammerBodyMin))
	return true, clamp01(s)
}

func matchMarubozu(cp candleParts) (bool, float64) {
	if !cp.IsBull || cp.BodyPct < marubozuBodyMin || cp.UpperPct > marubozuWickMax || cp.LowerPct > marubozuWickMax {
		return false, 0
	}
	return true, clamp01((cp.BodyPct - marubozuBodyMin) / (1.0 - marubozuBodyMin))
}

func matchBullEngulf(cp1, cp2 candleParts, c1, c2 core.Bar) (bool, float64) {
	if !cp1.IsBear || !cp2.IsBull {
		return false, 0
	}

	fullEngulf := c2.Close > c1.Open && c2.Open < c1.Close
	sizeEngulf := cp2.Body >= engulfBodyRatio*cp1.Body
	if !fullEngulf && !sizeEngulf {
		return false, 0
	}

	ratio := clamp01(cp2.Body / (cp1.Body + 1e-9) / engulfBodyRatio)
	low2, high2 := math.Min(c2.Open, c2.Close), math.Max(c2.Open, c2.Close)
	low1, high1 := math.Min(c1.Open, c1.Close), math.Max(c1.Open, c1.Close)
	overlap := math.Max(0, math.Min(high2, high1)-math.Max(low2, low1))
	return true, clamp01(0.6*ratio + 0.4*clamp01(overlap/(cp2.Body+1e-9)))
}

func matchPiercing(cp1, cp2 candleParts, c1, c2 core.Bar) bool {
	// bull opens below the bear close and closes above the middle of its body
	mid1 := (c1.Open + c1.Close) / 2
	return cp1.IsBear && cp2.IsBull && c2.Open < c1.Close && c2.Close > mid1
}

// DetectBullish returns the bullish patterns completed by the current bar
func DetectBullish(previous, current core.Bar) []Pattern {
	cp := split(current)

	var found []Pattern
	if ok, s := matchHammer(cp); ok {
		found = append(found, Pattern{Name: PatternHammer, Strength: s})
	}
	if ok, s := matchMarubozu(cp); ok {
		found = append(found, Pattern{Name: PatternMarubozu, Strength: s})
	}

	if previous.IsEmpty() {
		return found
	}

	prev := split(previous)
	if ok, s := matchBullEngulf(prev, cp, previous, current); ok {
		found = append(found, Pattern{Name: PatternBullEngulfing, Strength: s})
	}
	if matchPiercing(prev, cp, previous, current) {
		found = append(found, Pattern{Name: PatternPiercing, Strength: 0.6})
	}

	return found
}

// Strongest returns the pattern with the highest strength
func Strongest(patterns []Pattern) (Pattern, bool) {
	var best Pattern
	for i, p := range patterns {
		if i == 0 || p.Strength > best.Strength {
			best = p
		}
	}
	return best, len(patterns) > 0
}
