package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
)

// RandomSearch implements a seeded random search optimization algorithm
type RandomSearch struct {
	parameters    []Parameter
	maxIterations int
	parallelism   int
	seed          int64
	logger        logger.Logger
}

// NewRandomSearch creates a new random search optimizer
func NewRandomSearch(config *Config) (*RandomSearch, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if len(config.Parameters) == 0 {
		return nil, fmt.Errorf("at least one parameter must be provided")
	}

	log := config.Logger
	if log == nil {
		log = zerolog.Nop()
	}

	return &RandomSearch{
		parameters:    config.Parameters,
		maxIterations: config.MaxIterations,
		parallelism:   config.Parallelism,
		seed:          config.Seed,
		logger:        log,
	}, nil
}

// SetParameters sets the parameters to be optimized
func (r *RandomSearch) SetParameters(params []Parameter) error {
	if len(params) == 0 {
		return fmt.Errorf("at least one parameter must be provided")
	}
	r.parameters = params
	return nil
}

// SetMaxIterations sets the maximum number of iterations
func (r *RandomSearch) SetMaxIterations(iterations int) {
	r.maxIterations = iterations
}

// SetParallelism sets the number of parallel evaluations
func (r *RandomSearch) SetParallelism(n int) {
	r.parallelism = n
}

// Optimize runs the random search optimization process
func (r *RandomSearch) Optimize(
	ctx context.Context,
	evaluator Evaluator,
	targetMetric MetricName,
	maximize bool,
) ([]*Result, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	// Every call samples afresh from the seed
	parameterSets := r.generateRandomParameterSets(rand.New(rand.NewSource(r.seed)))

	r.logger.Debugf("Starting random search with %d iterations", len(parameterSets))

	results, err := runEvaluations(ctx, evaluator, parameterSets, r.parallelism, r.logger)
	if err != nil {
		return nil, err
	}

	sort.Stable(ResultSorter{
		Results:    results,
		MetricName: string(targetMetric),
		Maximize:   maximize,
	})

	r.logger.Debugf("Random search completed with %d results", len(results))
	return results, nil
}

// generateRandomParameterSets creates random parameter sets for evaluation
func (r *RandomSearch) generateRandomParameterSets(rng *rand.Rand) []ParameterSet {
	parameterSets := make([]ParameterSet, r.maxIterations)

	for i := 0; i < r.maxIterations; i++ {
		paramSet := make(ParameterSet)
		for _, param := range r.parameters {
			paramSet[param.Name] = generateRandomValue(rng, param)
		}
		parameterSets[i] = paramSet
	}

	return parameterSets
}

// generateRandomValue creates a random value for a parameter based on its type and range
func generateRandomValue(rng *rand.Rand, param Parameter) any {
	switch param.Type {
	case TypeInt:
		return generateRandomInt(rng, param)
	case TypeFloat:
		return generateRandomFloat(rng, param)
	case TypeBool:
		return rng.Intn(2) == 1
	case TypeCategorical:
		if len(param.Options) == 0 {
			return param.Default
		}
		return param.Options[rng.Intn(len(param.Options))]
	default:
		return param.Default
	}
}

// generateRandomInt creates a random integer within the specified range
func generateRandomInt(rng *rand.Rand, param Parameter) int {
	min, ok := param.Min.(int)
	if !ok {
		if def, ok := param.Default.(int); ok {
			return def
		}
		return 0
	}

	max, ok := param.Max.(int)
	if !ok || min >= max {
		return min
	}

	return min + rng.Intn(max-min+1)
}

// generateRandomFloat creates a random float within the specified range,
// snapped to the step when one is given
func generateRandomFloat(rng *rand.Rand, param Parameter) float64 {
	min, ok := param.Min.(float64)
	if !ok {
		if def, ok := param.Default.(float64); ok {
			return def
		}
		return 0.0
	}

	max, ok := param.Max.(float64)
	if !ok || min >= max {
		return min
	}

	value := min + rng.Float64()*(max-min)
	if step, ok := param.Step.(float64); ok && step > 0 {
		value = math.Min(max, min+math.Round((value-min)/step)*step)
	}
	return math.Round(value*1e9) / 1e9
}
