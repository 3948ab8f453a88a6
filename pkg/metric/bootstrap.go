package metric

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// BootstrapInterval is a resampled confidence interval of a statistic
type BootstrapInterval struct {
	Confidence float64 `yaml:"confidence"`
	Lower      float64 `yaml:"lower"`
	Upper      float64 `yaml:"upper"`
	Mean       float64 `yaml:"mean"`
	StdDev     float64 `yaml:"std_dev"`
}

// Contains reports whether v lies within the interval
func (b BootstrapInterval) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Bootstrap resamples values with replacement samples times, applies
// measure to every resample and returns the central confidence interval of
// the results. A given seed always yields the same interval.
func Bootstrap(values []float64, measure func([]float64) float64, samples int,
	confidence float64, seed int64) BootstrapInterval {

	if len(values) == 0 || samples <= 0 {
		return BootstrapInterval{}
	}

	rng := rand.New(rand.NewSource(seed))
	resample := make([]float64, len(values))
	measured := make([]float64, samples)
	for i := range measured {
		for j := range resample {
			resample[j] = values[rng.Intn(len(values))]
		}
		measured[i] = measure(resample)
	}
	sort.Float64s(measured)

	alpha := (1 - confidence) / 2
	mean, stdDev := stat.MeanStdDev(measured, nil)
	return BootstrapInterval{
		Confidence: confidence,
		Lower:      stat.Quantile(alpha, stat.LinInterp, measured, nil),
		Upper:      stat.Quantile(1-alpha, stat.LinInterp, measured, nil),
		Mean:       mean,
		StdDev:     stdDev,
	}
}
