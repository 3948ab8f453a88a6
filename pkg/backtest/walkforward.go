package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
	"github.com/raykavin/tradeplan/pkg/optimizer"
	"github.com/raykavin/tradeplan/pkg/strategy"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Names of the parameters a walk-forward search tunes by default
const (
	ParamMinScore = "min_score"
	ParamMinEV    = "min_ev"
	ParamATRStop  = "atr_stop"
)

// Search algorithms
const (
	SearchGrid   = "grid"
	SearchRandom = "random"
)

// WalkForwardConfig defines the rolling windows and the per-window search
type WalkForwardConfig struct {
	InSample    string                `mapstructure:"in_sample" yaml:"in_sample"`
	OutOfSample string                `mapstructure:"out_of_sample" yaml:"out_of_sample"`
	Step        string                `mapstructure:"step" yaml:"step"`
	Search      string                `mapstructure:"search" yaml:"search"`
	Target      optimizer.MetricName  `mapstructure:"target" yaml:"target"`
	Maximize    bool                  `mapstructure:"maximize" yaml:"maximize"`
	Iterations  int                   `mapstructure:"iterations" yaml:"iterations"`
	Parallelism int                   `mapstructure:"parallelism" yaml:"parallelism"`
	Seed        int64                 `mapstructure:"seed" yaml:"seed"`
	Parameters  []optimizer.Parameter `mapstructure:"parameters" yaml:"parameters"`
}

// DefaultWalkForwardConfig returns six months in-sample, one month out
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		InSample:    "180d",
		OutOfSample: "30d",
		Step:        "30d",
		Search:      SearchGrid,
		Target:      optimizer.MetricSharpeRatio,
		Maximize:    true,
		Iterations:  100,
		Parallelism: 1,
		Seed:        1,
		Parameters:  DefaultParameterSpace(),
	}
}

// DefaultParameterSpace tunes the score threshold, the minimum expected
// value and the swing ATR stop multiplier
func DefaultParameterSpace() []optimizer.Parameter {
	return []optimizer.Parameter{
		{
			Name:        ParamMinScore,
			Description: "Minimum composite score",
			Default:     50,
			Min:         50,
			Max:         70,
			Step:        5,
			Type:        optimizer.TypeInt,
		},
		{
			Name:        ParamMinEV,
			Description: "Minimum expected value as a fraction of entry",
			Default:     0.001,
			Min:         0.001,
			Max:         0.003,
			Step:        0.001,
			Type:        optimizer.TypeFloat,
		},
		{
			Name:        ParamATRStop,
			Description: "Swing ATR stop multiplier",
			Default:     1.5,
			Min:         1.0,
			Max:         2.0,
			Step:        0.5,
			Type:        optimizer.TypeFloat,
		},
	}
}

// Validate checks durations and the search definition
func (c WalkForwardConfig) Validate() error {
	var errs []error
	for _, span := range []struct{ name, value string }{
		{"in_sample", c.InSample},
		{"out_of_sample", c.OutOfSample},
		{"step", c.Step},
	} {
		d, err := str2duration.ParseDuration(span.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", span.name, err))
			continue
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", span.name))
		}
	}
	if c.Search != SearchGrid && c.Search != SearchRandom {
		errs = append(errs, fmt.Errorf("unknown search %q", c.Search))
	}
	if len(c.Parameters) == 0 {
		errs = append(errs, fmt.Errorf("at least one parameter must be provided"))
	}
	return errors.Join(errs...)
}

// Window is one in-sample fit followed by its out-of-sample evaluation.
// Both spans are half open.
type Window struct {
	Index    int       `yaml:"index"`
	InStart  time.Time `yaml:"in_start"`
	InEnd    time.Time `yaml:"in_end"`
	OutStart time.Time `yaml:"out_start"`
	OutEnd   time.Time `yaml:"out_end"`
}

// Windows lays windows over [start, end), rolling by step. The last
// out-of-sample span is cut at end.
func (c WalkForwardConfig) Windows(start, end time.Time) ([]Window, error) {
	in, err := str2duration.ParseDuration(c.InSample)
	if err != nil {
		return nil, fmt.Errorf("in_sample: %w", err)
	}
	out, err := str2duration.ParseDuration(c.OutOfSample)
	if err != nil {
		return nil, fmt.Errorf("out_of_sample: %w", err)
	}
	step, err := str2duration.ParseDuration(c.Step)
	if err != nil {
		return nil, fmt.Errorf("step: %w", err)
	}
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive")
	}

	var windows []Window
	for from := start; ; from = from.Add(step) {
		w := Window{
			Index:    len(windows),
			InStart:  from,
			InEnd:    from.Add(in),
			OutStart: from.Add(in),
			OutEnd:   from.Add(in + out),
		}
		if !w.OutStart.Before(end) {
			break
		}
		if w.OutEnd.After(end) {
			w.OutEnd = end
		}
		windows = append(windows, w)
	}
	return windows, nil
}

// WindowResult holds the fitted parameters and out-of-sample outcome of a window
type WindowResult struct {
	Window `yaml:",inline"`

	Parameters  optimizer.ParameterSet `yaml:"parameters"`
	InSample    map[string]float64     `yaml:"in_sample"`
	OutOfSample Metrics                `yaml:"out_of_sample"`

	// Ranked lists every in-sample parameter set, best first
	Ranked []*optimizer.Result `yaml:"-"`
}

// WalkForwardResult aggregates every out-of-sample window
type WalkForwardResult struct {
	Windows    []WindowResult
	Initial    core.AccountState
	Account    core.AccountState
	Trades     []core.TradeResult
	Equity     []EquityPoint
	Audit      []core.AuditEntry
	Metrics    Metrics
	Robustness Robustness
}

// WindowResults returns the chosen parameters of each window with its
// out-of-sample metrics, in window order
func (r *WalkForwardResult) WindowResults() []*optimizer.Result {
	results := make([]*optimizer.Result, len(r.Windows))
	for i, window := range r.Windows {
		results[i] = &optimizer.Result{
			Index:      window.Index,
			Parameters: window.Parameters,
			Metrics:    window.OutOfSample.Values(),
		}
	}
	return results
}

// WalkForward fits parameters on each in-sample span and freezes them for
// the following out-of-sample span. One account and one strategy history
// are carried across all out-of-sample spans.
type WalkForward struct {
	cfg     WalkForwardConfig
	factory Factory
	log     logger.Logger
}

// NewWalkForward validates the configuration and creates a walk-forward run
func NewWalkForward(cfg WalkForwardConfig, factory Factory, log logger.Logger) (*WalkForward, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zerolog.Nop()
	}
	return &WalkForward{cfg: cfg, factory: factory, log: log}, nil
}

// Config returns the walk-forward configuration
func (w *WalkForward) Config() WalkForwardConfig {
	return w.cfg
}

func (w *WalkForward) optimizer() (optimizer.Optimizer, error) {
	config := optimizer.NewConfig().
		WithParameters(w.cfg.Parameters...).
		WithMaxIterations(w.cfg.Iterations).
		WithParallelism(w.cfg.Parallelism).
		WithSeed(w.cfg.Seed).
		WithTargetMetric(w.cfg.Target, w.cfg.Maximize).
		WithLogger(w.log)

	if w.cfg.Search == SearchRandom {
		return optimizer.NewRandomSearch(config)
	}
	return optimizer.NewGridSearch(config)
}

// Run walks the windows over the full span of the instruments
func (w *WalkForward) Run(ctx context.Context, instruments []decision.Instrument, equity float64) (*WalkForwardResult, error) {
	first, last := Span(instruments)
	windows, err := w.cfg.Windows(first, last.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: history shorter than the in-sample span %s", core.ErrInsufficientHistory, w.cfg.InSample)
	}

	search, err := w.optimizer()
	if err != nil {
		return nil, err
	}

	result := &WalkForwardResult{}
	var (
		account *core.AccountState
		history *strategy.Tracker
	)

	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		evaluator := NewEvaluator(w.factory, Clip(instruments, window.InEnd), equity, window.InStart)
		ranked, err := search.Optimize(ctx, evaluator, w.cfg.Target, w.cfg.Maximize)
		if err != nil {
			return nil, fmt.Errorf("window %d in-sample: %w", window.Index, err)
		}
		if len(ranked) == 0 {
			return nil, fmt.Errorf("window %d in-sample: no parameter set evaluated", window.Index)
		}
		best := ranked[0]

		validator, err := w.factory(best.Parameters)
		if err != nil {
			return nil, fmt.Errorf("window %d: build validator: %w", window.Index, err)
		}
		validator.runID = fmt.Sprintf("%s-w%02d", validator.runID, window.Index)

		if account == nil {
			initial := validator.Pipeline().Risk().NewAccount(equity, window.OutStart)
			account = &initial
			result.Initial = initial
		}

		tracker := validator.Pipeline().Scorer().Selector().Tracker()
		if history != nil {
			tracker.Restore(history)
		} else {
			tracker.Reset()
		}

		replay, err := validator.Replay(ctx, Clip(instruments, window.OutEnd), *account, window.OutStart)
		if err != nil {
			return nil, fmt.Errorf("window %d out-of-sample: %w", window.Index, err)
		}
		account = &replay.Account
		history = tracker

		result.Windows = append(result.Windows, WindowResult{
			Window:      window,
			Parameters:  best.Parameters,
			InSample:    best.Metrics,
			OutOfSample: replay.Metrics,
			Ranked:      ranked,
		})
		result.Trades = append(result.Trades, replay.Trades...)
		result.Equity = append(result.Equity, replay.Equity...)
		result.Audit = append(result.Audit, replay.Audit...)

		w.log.WithFields(map[string]any{
			"window":     window.Index,
			"out_start":  window.OutStart.Format(time.DateOnly),
			"parameters": optimizer.FormatParameterSet(best.Parameters),
			"trades":     replay.Metrics.Trades,
			"return":     replay.Metrics.TotalReturn,
		}).Info("walk-forward window done")
	}

	result.Account = *account

	curve := make([]float64, 0, len(result.Equity)+1)
	curve = append(curve, result.Initial.Equity)
	for _, point := range result.Equity {
		curve = append(curve, point.Equity)
	}
	result.Metrics = ComputeMetrics(result.Trades, curve, w.cfg.Seed, DefaultBootstrapSamples)

	outOfSample := make([]Metrics, len(result.Windows))
	for i, window := range result.Windows {
		outOfSample[i] = window.OutOfSample
	}
	result.Robustness = AssessRobustness(outOfSample)

	return result, nil
}
