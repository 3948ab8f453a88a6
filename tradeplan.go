// Package tradeplan wires the indicator, scoring, risk and validation
// packages into one engine configured from a single Config.
package tradeplan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/tradeplan/internal/config"
	"github.com/raykavin/tradeplan/pkg/backtest"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/feed"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
	"github.com/raykavin/tradeplan/pkg/optimizer"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/raykavin/tradeplan/pkg/scoring"
	"github.com/raykavin/tradeplan/pkg/strategy"
	"github.com/raykavin/tradeplan/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// DefaultLog is used by engines created without WithLogger
var DefaultLog logger.Logger

// Engine builds pipelines and validators from a configuration
type Engine struct {
	cfg       config.Config
	log       logger.Logger
	journal   core.Journal
	registry  prometheus.Registerer
	telemetry *telemetry.Metrics
	observers []backtest.Observer
	progress  bool
	pipeline  *decision.Pipeline
}

// New validates cfg and builds the engine pipeline
func New(cfg config.Config, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{cfg: cfg, log: DefaultLog}
	for _, option := range options {
		option(engine)
	}
	if engine.log == nil {
		engine.log = zerolog.Nop()
	}
	if engine.registry != nil {
		engine.telemetry = telemetry.New(engine.registry)
		engine.observers = append(engine.observers, engine.telemetry)
	}

	pipeline, err := engine.build(nil, true)
	if err != nil {
		return nil, err
	}
	engine.pipeline = pipeline

	return engine, nil
}

// NewLogger builds a logger from the log section of a configuration
func NewLogger(cfg config.LogConfig) (logger.Logger, error) {
	log, err := zerolog.New(zerolog.Options{
		Level:          cfg.Level,
		DateTimeLayout: cfg.TimeFormat,
		Colored:        cfg.Color,
		JSON:           cfg.JSON,
	})
	if err != nil {
		return nil, err
	}
	return zerolog.NewAdapter(log), nil
}

func (e *Engine) Config() config.Config { return e.cfg }

func (e *Engine) Pipeline() *decision.Pipeline { return e.pipeline }

// NewAccount opens an account with the configured equity
func (e *Engine) NewAccount(at time.Time) core.AccountState {
	return e.pipeline.Risk().NewAccount(e.cfg.Equity, at)
}

// LoadInstruments reads the configured feed, cut to the configured history
// span. Symbols without a sector in their source fall back to the risk
// sector map.
func (e *Engine) LoadInstruments() ([]decision.Instrument, error) {
	csvFeed, err := feed.NewCSVFeed(e.cfg.Feed.Timeframe, e.cfg.Feed.Sources...)
	if err != nil {
		return nil, fmt.Errorf("loading feed: %w", err)
	}
	if csvFeed.Universe().Len() == 0 {
		return nil, errors.New("feed has no sources")
	}

	history, err := e.cfg.Feed.HistoryWindow()
	if err != nil {
		return nil, err
	}
	if history > 0 {
		csvFeed.Limit(history)
	}
	return csvFeed.Instruments(e.cfg.Risk.Sector), nil
}

// Plan runs one decision cycle on the latest bar of every instrument
func (e *Engine) Plan(ctx context.Context, instruments []decision.Instrument, account core.AccountState) ([]decision.Result, error) {
	return e.pipeline.Cycle(ctx, instruments, account)
}

// Backtest replays the instruments from the configured start date
func (e *Engine) Backtest(ctx context.Context, instruments []decision.Instrument) (*backtest.Result, error) {
	from, err := e.cfg.Backtest.Start()
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from, _ = backtest.Span(instruments)
	}

	validator := backtest.NewValidator(e.pipeline, e.validatorOptions(e.journal, e.progress)...)
	return validator.RunFrom(ctx, instruments, e.NewAccount(from), from)
}

// StressTest replays the instruments from the configured start once as
// they are and once per configured shock scenario. Stress replays do not
// journal or report telemetry.
func (e *Engine) StressTest(ctx context.Context, instruments []decision.Instrument) (*backtest.StressResult, error) {
	from, err := e.cfg.Backtest.Start()
	if err != nil {
		return nil, err
	}
	shock, err := e.cfg.Stress.ShockTime()
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from, _ = backtest.Span(instruments)
	}

	pipeline, err := e.build(nil, false)
	if err != nil {
		return nil, err
	}
	validator := backtest.NewValidator(pipeline,
		backtest.WithLogger(zerolog.Nop()),
		backtest.WithSeed(e.cfg.Backtest.Seed),
		backtest.WithBootstrapSamples(e.cfg.Backtest.BootstrapSamples),
		backtest.WithRunID(backtest.RunID(digest(e.cfg), []byte("stress"))),
	)

	stress, err := backtest.NewStressTest(validator, e.log, e.cfg.Stress.Scenarios...)
	if err != nil {
		return nil, err
	}
	return stress.Run(ctx, instruments, e.NewAccount(from), from, shock)
}

// WalkForward optimises each in-sample window and chains the out-of-sample
// replays. The journal, when set, receives the out-of-sample trades and audit.
func (e *Engine) WalkForward(ctx context.Context, instruments []decision.Instrument) (*backtest.WalkForwardResult, error) {
	walk, err := backtest.NewWalkForward(e.cfg.WalkForward, e.Factory(), e.log)
	if err != nil {
		return nil, err
	}

	result, err := walk.Run(ctx, instruments, e.cfg.Equity)
	if err != nil {
		return nil, err
	}

	if err := e.record(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Factory builds a validator on a fresh pipeline with the parameter set
// applied. Factory validators do not journal or report telemetry, since
// optimisation replays every in-sample window many times.
func (e *Engine) Factory() backtest.Factory {
	return func(params optimizer.ParameterSet) (*backtest.Validator, error) {
		pipeline, err := e.build(params, false)
		if err != nil {
			return nil, err
		}
		options := []backtest.Option{
			backtest.WithLogger(zerolog.Nop()),
			backtest.WithSeed(e.cfg.Backtest.Seed),
			backtest.WithBootstrapSamples(e.cfg.Backtest.BootstrapSamples),
			backtest.WithRunID(backtest.RunID(digest(e.cfg), []byte(optimizer.FormatParameterSet(params)))),
		}
		return backtest.NewValidator(pipeline, options...), nil
	}
}

// build creates the indicator, scoring and risk engines. params overrides
// the score threshold, the minimum expected value and the swing stop.
func (e *Engine) build(params optimizer.ParameterSet, observed bool) (*decision.Pipeline, error) {
	cfg := e.cfg

	tiers := cfg.Scoring.Tiers
	tiers.Weak = params.Float(backtest.ParamMinScore, tiers.Weak)
	if tiers.Moderate < tiers.Weak {
		tiers.Moderate = tiers.Weak
	}
	minEV := params.Float(backtest.ParamMinEV, cfg.Strategy.MinExpectedValue)
	riskCfg := cfg.Risk
	riskCfg.ATRStopSwing = params.Float(backtest.ParamATRStop, riskCfg.ATRStopSwing)

	catalogue, err := indicator.NewCatalogue(cfg.Indicators.Window, indicator.DefaultDefinitions()...)
	if err != nil {
		return nil, err
	}

	log := e.log
	if !observed {
		log = zerolog.Nop()
	}

	selector := strategy.NewSelector(cfg.Costs, strategy.WithMinExpectedValue(minEV))
	scorer := scoring.NewScorer(
		scoring.WithWeights(cfg.Scoring.Weights),
		scoring.WithTiers(tiers),
		scoring.WithRegimeThresholds(cfg.Scoring.Regimes),
		scoring.WithSelector(selector),
		scoring.WithLogger(log),
	)

	riskEngine, err := risk.NewEngine(riskCfg, risk.WithCostModel(cfg.Costs), risk.WithLogger(log))
	if err != nil {
		return nil, err
	}

	options := []decision.Option{
		decision.WithWorkers(cfg.Workers),
		decision.WithLogger(log),
	}
	if observed && e.telemetry != nil {
		options = append(options, decision.WithObserver(e.telemetry))
	}

	return decision.NewPipeline(indicator.NewEngine(catalogue), scorer, riskEngine, options...), nil
}

func (e *Engine) validatorOptions(journal core.Journal, progress bool) []backtest.Option {
	options := []backtest.Option{
		backtest.WithLogger(e.log),
		backtest.WithSeed(e.cfg.Backtest.Seed),
		backtest.WithBootstrapSamples(e.cfg.Backtest.BootstrapSamples),
		backtest.WithRunID(backtest.RunID(digest(e.cfg))),
		backtest.WithProgress(progress),
	}
	if journal != nil {
		options = append(options, backtest.WithJournal(journal))
	}
	for _, observer := range e.observers {
		options = append(options, backtest.WithObserver(observer))
	}
	return options
}

// record writes a walk-forward result to the journal
func (e *Engine) record(result *backtest.WalkForwardResult) error {
	if e.journal == nil {
		return nil
	}

	runID := backtest.RunID(digest(e.cfg), []byte("walkforward"))
	for i, trade := range result.Trades {
		record := core.NewTradeRecord(runID, int64(i), trade)
		if err := e.journal.RecordTrade(&record); err != nil {
			return fmt.Errorf("journal trade: %w", err)
		}
	}
	for i := range result.Audit {
		if err := e.journal.RecordAudit(&result.Audit[i]); err != nil {
			return fmt.Errorf("journal audit: %w", err)
		}
	}
	return nil
}

// digest is the canonical encoding of a configuration used for run IDs
func digest(cfg config.Config) []byte {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	return raw
}
