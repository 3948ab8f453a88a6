// Package risk turns scored candidates into sized trade plans, manages open
// positions bar by bar and runs the drawdown escalation state machine.
package risk

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/xhit/go-str2duration/v2"
)

// TrailingSource selects the price that drives the trailing stop
type TrailingSource string

const (
	// TrailHigh trails from the bar high, the finest price available in bar data
	TrailHigh TrailingSource = "high"
	// TrailClose trails from session closes only
	TrailClose TrailingSource = "close"
)

// Config holds every sizing and exit threshold
type Config struct {
	MinRewardRisk float64      `mapstructure:"min_reward_risk" yaml:"min_reward_risk"`
	Holding       core.Holding `mapstructure:"holding" yaml:"holding"`

	ATRStopSwing    float64 `mapstructure:"atr_stop_swing" yaml:"atr_stop_swing"`
	ATRStopIntraday float64 `mapstructure:"atr_stop_intraday" yaml:"atr_stop_intraday"`
	SupportLookback int     `mapstructure:"support_lookback" yaml:"support_lookback"`
	SupportMinBars  int     `mapstructure:"support_min_bars" yaml:"support_min_bars"`
	SupportBuffer   float64 `mapstructure:"support_buffer" yaml:"support_buffer"`

	TP1ATR      float64 `mapstructure:"tp1_atr" yaml:"tp1_atr"`
	TP2ATR      float64 `mapstructure:"tp2_atr" yaml:"tp2_atr"`
	TP1Fraction float64 `mapstructure:"tp1_fraction" yaml:"tp1_fraction"`

	TrailingActivationATR float64        `mapstructure:"trailing_activation_atr" yaml:"trailing_activation_atr"`
	TrailingDistanceATR   float64        `mapstructure:"trailing_distance_atr" yaml:"trailing_distance_atr"`
	TrailingSource        TrailingSource `mapstructure:"trailing_source" yaml:"trailing_source"`
	MaxHold               string         `mapstructure:"max_hold" yaml:"max_hold"`

	MaxPositionPct   float64 `mapstructure:"max_position_pct" yaml:"max_position_pct"`
	MaxSectorPct     float64 `mapstructure:"max_sector_pct" yaml:"max_sector_pct"`
	MaxOpenPositions int     `mapstructure:"max_open_positions" yaml:"max_open_positions"`

	Sectors  map[string]string `mapstructure:"sectors" yaml:"sectors"`
	Drawdown DrawdownConfig    `mapstructure:"drawdown" yaml:"drawdown"`
}

// DrawdownConfig holds the escalation thresholds
type DrawdownConfig struct {
	NormalRisk  float64 `mapstructure:"normal_risk" yaml:"normal_risk"`
	ReducedRisk float64 `mapstructure:"reduced_risk" yaml:"reduced_risk"`
	MinimalRisk float64 `mapstructure:"minimal_risk" yaml:"minimal_risk"`

	ReduceAfterLosses   int `mapstructure:"reduce_after_losses" yaml:"reduce_after_losses"`
	MinimalAfterLosses  int `mapstructure:"minimal_after_losses" yaml:"minimal_after_losses"`
	RecoverReducedWins  int `mapstructure:"recover_reduced_wins" yaml:"recover_reduced_wins"`
	RecoverMinimalWins  int `mapstructure:"recover_minimal_wins" yaml:"recover_minimal_wins"`
	MinimalMaxPositions int `mapstructure:"minimal_max_positions" yaml:"minimal_max_positions"`

	PaperMonthlyPnL float64 `mapstructure:"paper_monthly_pnl" yaml:"paper_monthly_pnl"`
	HaltMonthlyPnL  float64 `mapstructure:"halt_monthly_pnl" yaml:"halt_monthly_pnl"`
	PaperRecovery   string  `mapstructure:"paper_recovery" yaml:"paper_recovery"`
}

// DefaultConfig returns the standard swing trading limits
func DefaultConfig() Config {
	return Config{
		MinRewardRisk:         2.0,
		Holding:               core.HoldingSwing,
		ATRStopSwing:          1.5,
		ATRStopIntraday:       1.0,
		SupportLookback:       50,
		SupportMinBars:        20,
		SupportBuffer:         0.995,
		TP1ATR:                1.5,
		TP2ATR:                3.0,
		TP1Fraction:           0.5,
		TrailingActivationATR: 1.0,
		TrailingDistanceATR:   1.5,
		TrailingSource:        TrailHigh,
		MaxHold:               "20d",
		MaxPositionPct:        0.33,
		MaxSectorPct:          0.40,
		MaxOpenPositions:      5,
		Sectors:               map[string]string{},
		Drawdown:              DefaultDrawdownConfig(),
	}
}

// DefaultDrawdownConfig returns 2%/1%/1% risk, 3 and 5 loss steps, -6% and -10% monthly limits
func DefaultDrawdownConfig() DrawdownConfig {
	return DrawdownConfig{
		NormalRisk:          0.02,
		ReducedRisk:         0.01,
		MinimalRisk:         0.01,
		ReduceAfterLosses:   3,
		MinimalAfterLosses:  5,
		RecoverReducedWins:  2,
		RecoverMinimalWins:  3,
		MinimalMaxPositions: 1,
		PaperMonthlyPnL:     -0.06,
		HaltMonthlyPnL:      -0.10,
		PaperRecovery:       "7d",
	}
}

// Validate checks the configuration for inconsistent values
func (c Config) Validate() error {
	var errs []error

	if c.MinRewardRisk <= 0 {
		errs = append(errs, fmt.Errorf("min_reward_risk must be positive"))
	}
	if c.Holding != core.HoldingSwing && c.Holding != core.HoldingIntraday {
		errs = append(errs, fmt.Errorf("unknown holding %q", c.Holding))
	}
	if c.TrailingSource != TrailHigh && c.TrailingSource != TrailClose {
		errs = append(errs, fmt.Errorf("unknown trailing_source %q", c.TrailingSource))
	}
	if c.TP1ATR <= 0 || c.TP2ATR <= c.TP1ATR {
		errs = append(errs, fmt.Errorf("targets must satisfy 0 < tp1_atr < tp2_atr"))
	}
	if c.TP1Fraction <= 0 || c.TP1Fraction >= 1 {
		errs = append(errs, fmt.Errorf("tp1_fraction must be in (0, 1)"))
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 || c.MaxSectorPct <= 0 || c.MaxSectorPct > 1 {
		errs = append(errs, fmt.Errorf("position and sector caps must be in (0, 1]"))
	}
	if c.MaxOpenPositions < 1 {
		errs = append(errs, fmt.Errorf("max_open_positions must be at least 1"))
	}
	if _, err := str2duration.ParseDuration(c.MaxHold); err != nil {
		errs = append(errs, fmt.Errorf("max_hold: %w", err))
	}
	if _, err := str2duration.ParseDuration(c.Drawdown.PaperRecovery); err != nil {
		errs = append(errs, fmt.Errorf("drawdown.paper_recovery: %w", err))
	}
	if c.Drawdown.HaltMonthlyPnL >= c.Drawdown.PaperMonthlyPnL || c.Drawdown.PaperMonthlyPnL >= 0 {
		errs = append(errs, fmt.Errorf("monthly limits must satisfy halt < paper < 0"))
	}
	if c.Drawdown.ReduceAfterLosses >= c.Drawdown.MinimalAfterLosses {
		errs = append(errs, fmt.Errorf("reduce_after_losses must be below minimal_after_losses"))
	}

	return errors.Join(errs...)
}

// Sector returns the configured sector of a symbol. Keys loaded through
// viper are lower-cased, so the lower-case symbol is tried too.
func (c Config) Sector(symbol string) string {
	for _, key := range []string{symbol, strings.ToLower(symbol)} {
		if sector, ok := c.Sectors[key]; ok && sector != "" {
			return sector
		}
	}
	return "Unknown"
}

func (c Config) maxHold() time.Duration {
	d, _ := str2duration.ParseDuration(c.MaxHold)
	return d
}

func (c DrawdownConfig) paperRecovery() time.Duration {
	d, _ := str2duration.ParseDuration(c.PaperRecovery)
	return d
}
