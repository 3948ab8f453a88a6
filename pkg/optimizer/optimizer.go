// Package optimizer searches parameter spaces for the set that maximises
// (or minimises) a backtest metric. Searches are deterministic: the same
// space, seed and evaluator always produce the same ranking.
package optimizer

import (
	"context"
	"fmt"

	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
)

// Parameter represents a configurable parameter that can be optimized
type Parameter struct {
	Name        string        `mapstructure:"name" yaml:"name"`               // Name of the parameter
	Description string        `mapstructure:"description" yaml:"description"` // Description of what the parameter does
	Default     any           `mapstructure:"default" yaml:"default"`         // Default value
	Min         any           `mapstructure:"min" yaml:"min"`                 // Minimum value (for numeric parameters)
	Max         any           `mapstructure:"max" yaml:"max"`                 // Maximum value (for numeric parameters)
	Step        any           `mapstructure:"step" yaml:"step"`               // Step size (for numeric parameters in grid search)
	Options     []any         `mapstructure:"options" yaml:"options"`         // Possible values (for categorical parameters)
	Type        ParameterType `mapstructure:"type" yaml:"type"`               // Type of the parameter
}

// ParameterType defines the data type of a parameter
type ParameterType string

const (
	// TypeInt represents integer parameters
	TypeInt ParameterType = "int"
	// TypeFloat represents floating-point parameters
	TypeFloat ParameterType = "float"
	// TypeBool represents boolean parameters
	TypeBool ParameterType = "bool"
	// TypeCategorical represents categorical parameters with predefined options
	TypeCategorical ParameterType = "categorical"
)

// ParameterSet represents a collection of parameters with specific values
type ParameterSet map[string]any

// Float returns a float parameter, or def when missing
func (p ParameterSet) Float(name string, def float64) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Int returns an integer parameter, or def when missing
func (p ParameterSet) Int(name string, def int) int {
	if v, ok := p[name].(int); ok {
		return v
	}
	return def
}

// Clone returns a shallow copy
func (p ParameterSet) Clone() ParameterSet {
	clone := make(ParameterSet, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// Result represents the outcome of a single optimization run
type Result struct {
	Index      int                // Position of the parameter set in the search order
	Parameters ParameterSet       // The parameter values used
	Metrics    map[string]float64 // Performance metrics
}

// MetricName defines standard metric names for optimization
type MetricName string

const (
	MetricTotalReturn  MetricName = "total_return"
	MetricWinRate      MetricName = "win_rate"
	MetricProfitFactor MetricName = "profit_factor"
	MetricExpectancy   MetricName = "expectancy"
	MetricDrawdown     MetricName = "max_drawdown"
	MetricSharpeRatio  MetricName = "sharpe"
	MetricSortinoRatio MetricName = "sortino"
	MetricTradeCount   MetricName = "trade_count"
)

// Evaluator defines the interface for evaluating a parameter set
type Evaluator interface {
	// Evaluate runs a backtest with the given parameters and returns performance metrics
	Evaluate(ctx context.Context, params ParameterSet) (*Result, error)
}

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process and returns every result, best first
	Optimize(ctx context.Context, evaluator Evaluator, targetMetric MetricName, maximize bool) ([]*Result, error)
	// SetParameters sets the parameters to be optimized
	SetParameters(params []Parameter) error
	// SetMaxIterations sets the maximum number of iterations for the optimization
	SetMaxIterations(iterations int)
	// SetParallelism sets the number of parallel evaluations
	SetParallelism(n int)
}

// Config holds configuration for the optimization process
type Config struct {
	// Parameters to optimize
	Parameters []Parameter
	// Maximum number of iterations
	MaxIterations int
	// Number of parallel evaluations
	Parallelism int
	// Seed for random search sampling
	Seed int64
	// Logger instance
	Logger logger.Logger
	// Target metric to optimize
	TargetMetric MetricName
	// Whether to maximize (true) or minimize (false) the target metric
	Maximize bool
	// Top N results to return
	TopN int
}

// NewConfig creates a default configuration
func NewConfig() *Config {
	return &Config{
		Parameters:    []Parameter{},
		MaxIterations: 100,
		Parallelism:   1,
		Seed:          1,
		Logger:        zerolog.Nop(),
		TargetMetric:  MetricSharpeRatio,
		Maximize:      true,
		TopN:          5,
	}
}

// WithParameters adds parameters to the configuration
func (c *Config) WithParameters(params ...Parameter) *Config {
	c.Parameters = append(c.Parameters, params...)
	return c
}

// WithMaxIterations sets the maximum number of iterations
func (c *Config) WithMaxIterations(iterations int) *Config {
	c.MaxIterations = iterations
	return c
}

// WithParallelism sets the number of parallel evaluations
func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

// WithSeed sets the random search seed
func (c *Config) WithSeed(seed int64) *Config {
	c.Seed = seed
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger logger.Logger) *Config {
	c.Logger = logger
	return c
}

// WithTargetMetric sets the target metric to optimize
func (c *Config) WithTargetMetric(metric MetricName, maximize bool) *Config {
	c.TargetMetric = metric
	c.Maximize = maximize
	return c
}

// WithTopN sets the number of top results to return
func (c *Config) WithTopN(n int) *Config {
	c.TopN = n
	return c
}

// ValidateParameterSet checks if a parameter set contains all required parameters
// with values of the correct type
func ValidateParameterSet(params ParameterSet, definitions []Parameter) error {
	for _, def := range definitions {
		value, exists := params[def.Name]
		if !exists {
			return fmt.Errorf("missing parameter: %s", def.Name)
		}

		switch def.Type {
		case TypeInt:
			if _, ok := value.(int); !ok {
				return fmt.Errorf("parameter %s must be an integer", def.Name)
			}
		case TypeFloat:
			if _, ok := value.(float64); !ok {
				return fmt.Errorf("parameter %s must be a float", def.Name)
			}
		case TypeBool:
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("parameter %s must be a boolean", def.Name)
			}
		case TypeCategorical:
			found := false
			for _, option := range def.Options {
				if option == value {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("parameter %s has invalid value", def.Name)
			}
		}
	}
	return nil
}

// ResultSorter sorts optimization results by a specific metric.
// Ties keep the search order so rankings are reproducible.
type ResultSorter struct {
	Results    []*Result
	MetricName string
	Maximize   bool
}

// Len returns the number of results
func (s ResultSorter) Len() int {
	return len(s.Results)
}

// Swap swaps two results
func (s ResultSorter) Swap(i, j int) {
	s.Results[i], s.Results[j] = s.Results[j], s.Results[i]
}

// Less compares two results based on the target metric
func (s ResultSorter) Less(i, j int) bool {
	valueI := s.Results[i].Metrics[s.MetricName]
	valueJ := s.Results[j].Metrics[s.MetricName]

	if valueI == valueJ {
		return s.Results[i].Index < s.Results[j].Index
	}
	if s.Maximize {
		return valueI > valueJ
	}
	return valueI < valueJ
}
