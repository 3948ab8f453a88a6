package backtest

import (
	"github.com/raykavin/tradeplan/pkg/metric"
	"github.com/samber/lo"
)

// Grade is the letter form of a robustness score
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

// Robustness rates how consistently out-of-sample windows performed
type Robustness struct {
	Windows         int     `yaml:"windows"`
	ProfitableRatio float64 `yaml:"profitable_ratio"`
	ReturnMean      float64 `yaml:"return_mean"`
	ReturnVariation float64 `yaml:"return_variation"`
	SharpeMean      float64 `yaml:"sharpe_mean"`
	WorstReturn     float64 `yaml:"worst_return"`
	Score           int     `yaml:"score"`
	Grade           Grade   `yaml:"grade"`
}

// AssessRobustness scores out-of-sample window metrics from 0 to 10:
// up to 3 points for the share of profitable windows, 3 for low return
// dispersion, 2 for the mean Sharpe and 2 for the worst window.
func AssessRobustness(windows []Metrics) Robustness {
	r := Robustness{Windows: len(windows), Grade: GradeD}
	if len(windows) == 0 {
		return r
	}

	returns := lo.Map(windows, func(m Metrics, _ int) float64 { return m.TotalReturn })
	profitable := lo.CountBy(returns, func(v float64) bool { return v > 0 })

	r.ProfitableRatio = float64(profitable) / float64(len(windows))
	r.ReturnMean = metric.Mean(returns)
	r.ReturnVariation = finite(metric.CoefficientOfVariation(returns))
	r.SharpeMean = lo.MeanBy(windows, func(m Metrics) float64 { return m.Sharpe })
	r.WorstReturn = lo.Min(returns)

	switch {
	case r.ProfitableRatio >= 0.7:
		r.Score += 3
	case r.ProfitableRatio >= 0.5:
		r.Score += 2
	case r.ProfitableRatio >= 0.4:
		r.Score++
	}

	// an all-flat run has no dispersion to reward
	if r.ReturnMean != 0 {
		switch cv := r.ReturnVariation; {
		case cv < 0.5:
			r.Score += 3
		case cv < 1:
			r.Score += 2
		case cv < 1.5:
			r.Score++
		}
	}

	switch {
	case r.SharpeMean > 1.5:
		r.Score += 2
	case r.SharpeMean > 1:
		r.Score++
	}

	switch {
	case r.WorstReturn > -0.10:
		r.Score += 2
	case r.WorstReturn > -0.20:
		r.Score++
	}

	r.Grade = GradeFor(r.Score)
	return r
}

// GradeFor maps a robustness score to its grade
func GradeFor(score int) Grade {
	switch {
	case score >= 9:
		return GradeAPlus
	case score >= 7:
		return GradeA
	case score >= 5:
		return GradeB
	case score >= 3:
		return GradeC
	default:
		return GradeD
	}
}
