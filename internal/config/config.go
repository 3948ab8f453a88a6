// Package config loads the engine configuration with Viper. Every key has a
// default, can be set in a YAML file and overridden from TRADEPLAN_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/raykavin/tradeplan/pkg/backtest"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/feed"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/raykavin/tradeplan/pkg/scoring"
	"github.com/raykavin/tradeplan/pkg/strategy"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "./tradeplan.yaml"
	EnvPrefix         = "TRADEPLAN"
	DateLayout        = "2006-01-02"
)

// Journal drivers
const (
	JournalNone   = ""
	JournalBuntDB = "buntdb"
	JournalSQLite = "sqlite"
)

// Config is the complete engine configuration
type Config struct {
	Equity  float64 `mapstructure:"equity" yaml:"equity"`
	Workers int     `mapstructure:"workers" yaml:"workers"`

	Indicators  IndicatorConfig            `mapstructure:"indicators" yaml:"indicators"`
	Scoring     ScoringConfig              `mapstructure:"scoring" yaml:"scoring"`
	Strategy    StrategyConfig             `mapstructure:"strategy" yaml:"strategy"`
	Costs       core.CostModel             `mapstructure:"costs" yaml:"costs"`
	Risk        risk.Config                `mapstructure:"risk" yaml:"risk"`
	Backtest    BacktestConfig             `mapstructure:"backtest" yaml:"backtest"`
	WalkForward backtest.WalkForwardConfig `mapstructure:"walk_forward" yaml:"walk_forward"`
	Stress      StressConfig               `mapstructure:"stress" yaml:"stress"`
	Feed        FeedConfig                 `mapstructure:"feed" yaml:"feed"`
	Journal     JournalConfig              `mapstructure:"journal" yaml:"journal"`
	Log         LogConfig                  `mapstructure:"log" yaml:"log"`
}

type IndicatorConfig struct {
	Window int `mapstructure:"window" yaml:"window"`
}

type ScoringConfig struct {
	Weights scoring.Weights          `mapstructure:"weights" yaml:"weights"`
	Tiers   scoring.Tiers            `mapstructure:"tiers" yaml:"tiers"`
	Regimes scoring.RegimeThresholds `mapstructure:"regimes" yaml:"regimes"`
}

type StrategyConfig struct {
	MinExpectedValue float64 `mapstructure:"min_expected_value" yaml:"min_expected_value"`
}

// BacktestConfig controls a single validator run. An empty From starts at
// the first bar of the feed.
type BacktestConfig struct {
	From             string `mapstructure:"from" yaml:"from"`
	Seed             int64  `mapstructure:"seed" yaml:"seed"`
	BootstrapSamples int    `mapstructure:"bootstrap_samples" yaml:"bootstrap_samples"`
	Progress         bool   `mapstructure:"progress" yaml:"progress"`
	Report           string `mapstructure:"report" yaml:"report"`
}

// StressConfig lists the shock scenarios. An empty Shock starts every
// shock halfway through the replay.
type StressConfig struct {
	Shock     string              `mapstructure:"shock" yaml:"shock"`
	Scenarios []backtest.Scenario `mapstructure:"scenarios" yaml:"scenarios"`
}

type FeedConfig struct {
	Timeframe string `mapstructure:"timeframe" yaml:"timeframe"`
	// History keeps only the bars within this span of each symbol's last
	// bar. Empty keeps the full history.
	History string        `mapstructure:"history" yaml:"history"`
	Sources []feed.Source `mapstructure:"sources" yaml:"sources"`
}

// HistoryWindow parses the history span, zero when unset
func (c FeedConfig) HistoryWindow() (time.Duration, error) {
	if c.History == "" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(c.History)
	if err != nil {
		return 0, fmt.Errorf("feed.history: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("feed.history must be positive")
	}
	return d, nil
}

type JournalConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
	Color      bool   `mapstructure:"color" yaml:"color"`
	JSON       bool   `mapstructure:"json" yaml:"json"`
}

// Default returns the configuration with every documented default
func Default() Config {
	return Config{
		Equity:     10_000,
		Workers:    4,
		Indicators: IndicatorConfig{Window: indicator.DefaultWindow},
		Scoring: ScoringConfig{
			Weights: scoring.DefaultWeights(),
			Tiers:   scoring.DefaultTiers(),
			Regimes: scoring.DefaultRegimeThresholds(),
		},
		Strategy: StrategyConfig{MinExpectedValue: strategy.DefaultMinExpectedValue},
		Costs:    core.DefaultCostModel(),
		Risk:     risk.DefaultConfig(),
		Backtest: BacktestConfig{
			Seed:             1,
			BootstrapSamples: backtest.DefaultBootstrapSamples,
		},
		WalkForward: backtest.DefaultWalkForwardConfig(),
		Stress:      StressConfig{Scenarios: backtest.DefaultScenarios()},
		Feed:        FeedConfig{Timeframe: "1d"},
		Journal:     JournalConfig{Driver: JournalNone},
		Log: LogConfig{
			Level:      "info",
			TimeFormat: "2006-01-02 15:04:05",
			Color:      true,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.ZeroFields = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveDefault writes the default configuration to path, creating its directory
func SaveDefault(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	settings, err := toMap(Default())
	if err != nil {
		return err
	}

	v := viper.New()
	for key, value := range settings {
		v.Set(key, value)
	}
	v.SetConfigFile(path)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("could not save default configuration: %w", err)
	}
	return nil
}

// Validate checks every section and reports all problems at once
func (c Config) Validate() error {
	var errs []error

	if c.Equity <= 0 {
		errs = append(errs, errors.New("equity must be positive"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}
	if _, err := indicator.NewCatalogue(c.Indicators.Window, indicator.DefaultDefinitions()...); err != nil {
		errs = append(errs, fmt.Errorf("indicators.window: %w", err))
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring.weights: %w", err))
	}
	if err := c.Scoring.Tiers.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring.tiers: %w", err))
	}
	if c.Strategy.MinExpectedValue < 0 {
		errs = append(errs, fmt.Errorf("strategy.min_expected_value: %w", core.ErrNegativeValue))
	}
	if c.Costs.FlatFee < 0 || c.Costs.SpreadPct < 0 || c.Costs.FXPct < 0 || c.Costs.SlippagePct < 0 {
		errs = append(errs, fmt.Errorf("costs: %w", core.ErrNegativeValue))
	}
	if err := c.Risk.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("risk: %w", err))
	}
	if _, err := c.Backtest.Start(); err != nil {
		errs = append(errs, err)
	}
	if err := c.WalkForward.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("walk_forward: %w", err))
	}
	if _, err := c.Stress.ShockTime(); err != nil {
		errs = append(errs, err)
	}
	for _, scenario := range c.Stress.Scenarios {
		if err := scenario.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stress: %w", err))
		}
	}
	if _, err := str2duration.ParseDuration(c.Feed.Timeframe); err != nil {
		errs = append(errs, fmt.Errorf("feed.timeframe: %w", err))
	}
	if _, err := c.Feed.HistoryWindow(); err != nil {
		errs = append(errs, err)
	}
	switch c.Journal.Driver {
	case JournalNone:
	case JournalBuntDB, JournalSQLite:
		if c.Journal.Path == "" {
			errs = append(errs, fmt.Errorf("journal.path is required for driver %q", c.Journal.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal driver %q", c.Journal.Driver))
	}

	return errors.Join(errs...)
}

// Start parses From, zero when unset
func (b BacktestConfig) Start() (time.Time, error) {
	if b.From == "" {
		return time.Time{}, nil
	}
	start, err := time.Parse(DateLayout, b.From)
	if err != nil {
		return time.Time{}, fmt.Errorf("backtest.from: %w", err)
	}
	return start, nil
}

// ShockTime parses Shock, zero when unset
func (s StressConfig) ShockTime() (time.Time, error) {
	if s.Shock == "" {
		return time.Time{}, nil
	}
	shock, err := time.Parse(DateLayout, s.Shock)
	if err != nil {
		return time.Time{}, fmt.Errorf("stress.shock: %w", err)
	}
	return shock, nil
}

// setDefaults registers every leaf of cfg so environment variables can
// override keys that are absent from the file
func setDefaults(v *viper.Viper, cfg Config) error {
	settings, err := toMap(cfg)
	if err != nil {
		return err
	}
	flatten("", settings, v.SetDefault)
	return nil
}

func toMap(cfg Config) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	settings := make(map[string]any)
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return settings, nil
}

// flatten walks nested maps; lists and scalars are leaves
func flatten(prefix string, node map[string]any, set func(string, any)) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := value.(map[string]any); ok && len(child) > 0 {
			flatten(path, child, set)
			continue
		}
		set(path, value)
	}
}
