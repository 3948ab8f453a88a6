package backtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Stress grading thresholds
const (
	// SurvivalEquity is the share of initial equity a scenario must keep
	SurvivalEquity = 0.70
	// RecoveryRate is the yearly return assumed when estimating recovery time
	RecoveryRate = 0.15
)

// Scenario is a market shock applied to every instrument at once.
// MarketDrop and GapDown are signed fractions of price.
type Scenario struct {
	Name                 string  `mapstructure:"name" yaml:"name"`
	MarketDrop           float64 `mapstructure:"market_drop" yaml:"market_drop"`
	VolatilityMultiplier float64 `mapstructure:"volatility_multiplier" yaml:"volatility_multiplier"`
	GapDown              float64 `mapstructure:"gap_down" yaml:"gap_down"`
	Duration             int     `mapstructure:"duration" yaml:"duration"` // bars
}

// Preset scenarios
var (
	ScenarioMildCorrection = Scenario{Name: "mild correction", MarketDrop: -0.15, VolatilityMultiplier: 2, Duration: 45}
	ScenarioCovid2020      = Scenario{Name: "covid 2020", MarketDrop: -0.35, VolatilityMultiplier: 4, Duration: 30}
	ScenarioCrash2008      = Scenario{Name: "crash 2008", MarketDrop: -0.50, VolatilityMultiplier: 3, Duration: 180}
	ScenarioFlashCrash2010 = Scenario{Name: "flash crash 2010", MarketDrop: -0.10, VolatilityMultiplier: 5, GapDown: -0.08, Duration: 1}
	ScenarioBlackMonday    = Scenario{Name: "black monday 1987", MarketDrop: -0.22, VolatilityMultiplier: 10, GapDown: -0.20, Duration: 1}
)

// DefaultScenarios returns the presets from the mildest to the most violent
func DefaultScenarios() []Scenario {
	return []Scenario{
		ScenarioMildCorrection,
		ScenarioCovid2020,
		ScenarioCrash2008,
		ScenarioFlashCrash2010,
		ScenarioBlackMonday,
	}
}

// Validate checks the scenario bounds
func (s Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("scenario name is empty"))
	}
	if s.MarketDrop <= -1 || s.MarketDrop > 0 {
		errs = append(errs, fmt.Errorf("scenario %s: market_drop must be in (-1, 0]", s.Name))
	}
	if s.GapDown <= -1 || s.GapDown > 0 || s.GapDown < s.MarketDrop {
		errs = append(errs, fmt.Errorf("scenario %s: gap_down must be in [market_drop, 0]", s.Name))
	}
	if s.VolatilityMultiplier < 1 {
		errs = append(errs, fmt.Errorf("scenario %s: volatility_multiplier must be at least 1", s.Name))
	}
	if s.Duration <= 0 {
		errs = append(errs, fmt.Errorf("scenario %s: duration must be positive", s.Name))
	}
	return errors.Join(errs...)
}

// Apply returns a copy of bars with the shock starting at the first bar at
// or after at. The first shocked bar opens GapDown below its price, prices
// then slide geometrically to MarketDrop over Duration bars and stay there.
// Ranges and volume inside the shock are widened by VolatilityMultiplier.
func (s Scenario) Apply(bars []core.Bar, at time.Time) []core.Bar {
	out := make([]core.Bar, len(bars))
	copy(out, bars)

	first := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(at) })
	gap := 1 + s.GapDown
	end := 1 + s.MarketDrop
	step := math.Pow(end/gap, 1/float64(s.Duration))

	for i := first; i < len(out); i++ {
		bar := bars[i]
		j := i - first
		if j >= s.Duration {
			out[i] = scale(bar, end, end, 1)
			continue
		}
		out[i] = scale(bar, gap*math.Pow(step, float64(j)), gap*math.Pow(step, float64(j+1)), s.VolatilityMultiplier)
	}
	return out
}

// scale moves the open and close by their own factors and stretches the
// wicks by volatility around the new body
func scale(bar core.Bar, openFactor, closeFactor, volatility float64) core.Bar {
	upper := bar.High - math.Max(bar.Open, bar.Close)
	lower := math.Min(bar.Open, bar.Close) - bar.Low
	factor := (openFactor + closeFactor) / 2

	bar.Open *= openFactor
	bar.Close *= closeFactor

	top, bottom := math.Max(bar.Open, bar.Close), math.Min(bar.Open, bar.Close)
	bar.High = top + upper*factor*volatility
	bar.Low = math.Max(bottom-lower*factor*volatility, bottom*0.01)
	bar.Volume *= volatility
	return bar
}

// Shock applies a scenario to every instrument
func Shock(instruments []decision.Instrument, scenario Scenario, at time.Time) []decision.Instrument {
	shocked := make([]decision.Instrument, len(instruments))
	for i, in := range instruments {
		shocked[i] = decision.Instrument{Symbol: in.Symbol, Sector: in.Sector, Bars: scenario.Apply(in.Bars, at)}
	}
	return shocked
}

// ScenarioResult is the replay outcome of one scenario
type ScenarioResult struct {
	Scenario Scenario           `yaml:"scenario"`
	Initial  float64            `yaml:"initial_equity"`
	Final    float64            `yaml:"final_equity"`
	Peak     float64            `yaml:"peak_equity"`
	Trough   float64            `yaml:"trough_equity"`
	Return   float64            `yaml:"return"`
	State    core.DrawdownState `yaml:"state"`
	Survived bool               `yaml:"survived"`
	// Recovery is the years needed to earn the loss back at RecoveryRate
	Recovery float64 `yaml:"recovery_years"`
	Metrics  Metrics `yaml:"metrics"`
}

// StressAnalysis aggregates every scenario into a risk score from 0 to 10,
// 10 being the riskiest: up to 4 points for the worst return, 3 for failed
// scenarios and 3 for the longest recovery.
type StressAnalysis struct {
	Scenarios     int     `yaml:"scenarios"`
	Survived      int     `yaml:"survived"`
	SurvivalRatio float64 `yaml:"survival_ratio"`
	WorstReturn   float64 `yaml:"worst_return"`
	BestReturn    float64 `yaml:"best_return"`
	AverageReturn float64 `yaml:"average_return"`
	MaxRecovery   float64 `yaml:"max_recovery_years"`
	Worst         string  `yaml:"worst_scenario"`
	RiskScore     int     `yaml:"risk_score"`
	Grade         Grade   `yaml:"grade"`
	Resilient     bool    `yaml:"resilient"`
}

// StressResult holds the unshocked baseline and every scenario
type StressResult struct {
	Shock     time.Time        `yaml:"shock"`
	Baseline  ScenarioResult   `yaml:"baseline"`
	Scenarios []ScenarioResult `yaml:"scenarios"`
	Analysis  StressAnalysis   `yaml:"analysis"`
}

// StressTest replays the same history under each scenario
type StressTest struct {
	validator *Validator
	scenarios []Scenario
	log       logger.Logger
}

// NewStressTest validates the scenarios, the presets when none are given
func NewStressTest(validator *Validator, log logger.Logger, scenarios ...Scenario) (*StressTest, error) {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	for _, scenario := range scenarios {
		if err := scenario.Validate(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = zerolog.Nop()
	}
	return &StressTest{validator: validator, scenarios: scenarios, log: log}, nil
}

// Run replays the instruments from from, once as they are and once per
// scenario with the shock starting at shock. A zero shock starts halfway
// between from and the last bar.
func (s *StressTest) Run(ctx context.Context, instruments []decision.Instrument, account core.AccountState, from, shock time.Time) (*StressResult, error) {
	first, last := Span(instruments)
	if from.IsZero() {
		from = first
	}
	if shock.IsZero() {
		shock = from.Add(last.Sub(from) / 2)
	}
	if shock.Before(from) || shock.After(last) {
		return nil, fmt.Errorf("shock %s outside the replay span %s ~ %s", shock.Format(time.DateOnly),
			from.Format(time.DateOnly), last.Format(time.DateOnly))
	}

	baseline, err := s.validator.RunFrom(ctx, instruments, account, from)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	result := &StressResult{
		Shock:    shock,
		Baseline: outcome(Scenario{Name: "baseline", VolatilityMultiplier: 1}, baseline),
	}

	for _, scenario := range s.scenarios {
		replay, err := s.validator.RunFrom(ctx, Shock(instruments, scenario, shock), account, from)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}

		shocked := outcome(scenario, replay)
		result.Scenarios = append(result.Scenarios, shocked)

		s.log.WithFields(map[string]any{
			"scenario": scenario.Name,
			"return":   shocked.Return,
			"drawdown": shocked.Metrics.MaxDrawdown,
			"state":    shocked.State,
			"survived": shocked.Survived,
		}).Info("stress scenario done")
	}

	result.Analysis = AnalyzeStress(result.Scenarios)
	return result, nil
}

func outcome(scenario Scenario, replay *Result) ScenarioResult {
	curve := core.Series[float64](replay.EquityValues())
	initial, final := replay.Initial.Equity, replay.Account.Equity

	r := ScenarioResult{
		Scenario: scenario,
		Initial:  initial,
		Final:    final,
		Peak:     curve.Highest(curve.Length()),
		Trough:   curve.Lowest(curve.Length()),
		State:    replay.Account.State,
		Metrics:  replay.Metrics,
	}
	if initial > 0 {
		r.Return = (final - initial) / initial
		r.Survived = final/initial > SurvivalEquity
		if final < initial {
			r.Recovery = (initial - final) / (initial * RecoveryRate)
		}
	}
	return r
}

// AnalyzeStress scores scenario outcomes
func AnalyzeStress(results []ScenarioResult) StressAnalysis {
	a := StressAnalysis{Scenarios: len(results), Grade: GradeD}
	if len(results) == 0 {
		return a
	}

	returns := lo.Map(results, func(r ScenarioResult, _ int) float64 { return r.Return })
	a.Survived = lo.CountBy(results, func(r ScenarioResult) bool { return r.Survived })
	a.SurvivalRatio = float64(a.Survived) / float64(len(results))
	a.WorstReturn = lo.Min(returns)
	a.BestReturn = lo.Max(returns)
	a.AverageReturn = lo.Sum(returns) / float64(len(returns))
	a.MaxRecovery = lo.MaxBy(results, func(x, y ScenarioResult) bool { return x.Recovery > y.Recovery }).Recovery
	a.Worst = lo.MinBy(results, func(x, y ScenarioResult) bool { return x.Final < y.Final }).Scenario.Name

	switch {
	case a.WorstReturn < -0.20:
		a.RiskScore += 4
	case a.WorstReturn < -0.10:
		a.RiskScore += 2
	}

	switch {
	case a.SurvivalRatio < 0.8:
		a.RiskScore += 3
	case a.SurvivalRatio < 1:
		a.RiskScore++
	}

	switch {
	case a.MaxRecovery > 2:
		a.RiskScore += 3
	case a.MaxRecovery > 1:
		a.RiskScore++
	}

	switch {
	case a.RiskScore >= 8:
		a.Grade = GradeD
	case a.RiskScore >= 6:
		a.Grade = GradeC
	case a.RiskScore >= 4:
		a.Grade = GradeB
	case a.RiskScore >= 2:
		a.Grade = GradeA
	default:
		a.Grade = GradeAPlus
	}

	a.Resilient = a.SurvivalRatio >= 0.8 && a.WorstReturn > -0.25
	return a
}

// Render writes one row per scenario followed by the aggregate grade
func (r *StressResult) Render(w io.Writer) error {
	buffer := bytes.NewBuffer(nil)

	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Scenario", "Drop", "Gap", "Vol x", "Bars", "Final", "Return", "Max DD", "Trough", "State", "Survived"})
	for _, s := range append([]ScenarioResult{r.Baseline}, r.Scenarios...) {
		table.Append([]string{
			s.Scenario.Name,
			fmt.Sprintf("%.0f %%", s.Scenario.MarketDrop*100),
			fmt.Sprintf("%.0f %%", s.Scenario.GapDown*100),
			fmt.Sprintf("%.1f", s.Scenario.VolatilityMultiplier),
			strconv.Itoa(s.Scenario.Duration),
			fmt.Sprintf("%.2f", s.Final),
			fmt.Sprintf("%.2f %%", s.Return*100),
			fmt.Sprintf("%.2f %%", s.Metrics.MaxDrawdown*100),
			fmt.Sprintf("%.2f", s.Trough),
			string(s.State),
			strconv.FormatBool(s.Survived),
		})
	}
	table.Render()

	a := r.Analysis
	fmt.Fprintf(buffer, "SHOCK: %s\n", r.Shock.Format(time.DateOnly))
	fmt.Fprintf(buffer, "SURVIVED: %d/%d, WORST: %s (%.2f %%)\n", a.Survived, a.Scenarios, a.Worst, a.WorstReturn*100)
	fmt.Fprintf(buffer, "STRESS RISK: %d/10 (%s), resilient: %t\n", a.RiskScore, a.Grade, a.Resilient)

	_, err := w.Write(buffer.Bytes())
	return err
}

// SaveYAML writes the stress result to a file
func (r *StressResult) SaveYAML(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return err
	}
	return encoder.Close()
}
