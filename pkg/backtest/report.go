package backtest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/metric"
	"github.com/raykavin/tradeplan/pkg/optimizer"
	"github.com/raykavin/tradeplan/pkg/risk"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// StrategySummary aggregates the live trades of one strategy variant
type StrategySummary struct {
	Strategy     core.StrategyName `yaml:"strategy"`
	Trades       int               `yaml:"trades"`
	Wins         int               `yaml:"wins"`
	Losses       int               `yaml:"losses"`
	WinRate      float64           `yaml:"win_rate"`
	Payoff       float64           `yaml:"payoff"`
	ProfitFactor float64           `yaml:"profit_factor"`
	AverageR     float64           `yaml:"average_r"`
	PnL          float64           `yaml:"pnl"`
}

// Report is the exportable summary of a replay or a walk-forward run
type Report struct {
	RunID       string             `yaml:"run_id,omitempty"`
	From        time.Time          `yaml:"from"`
	To          time.Time          `yaml:"to"`
	Initial     float64            `yaml:"initial_equity"`
	Final       float64            `yaml:"final_equity"`
	State       core.DrawdownState `yaml:"state"`
	Metrics     Metrics            `yaml:"metrics"`
	Strategies  []StrategySummary  `yaml:"strategies"`
	Transitions []string           `yaml:"transitions,omitempty"`
	Windows     []WindowResult     `yaml:"windows,omitempty"`
	Robustness  *Robustness        `yaml:"robustness,omitempty"`

	returns []float64
}

// NewReport summarises a replay
func NewReport(result *Result) *Report {
	report := &Report{
		RunID:   result.RunID,
		From:    result.From,
		To:      result.To,
		Initial: result.Initial.Equity,
		Final:   result.Account.Equity,
		State:   result.Account.State,
		Metrics: result.Metrics,
	}
	report.Transitions = lo.Map(result.Transitions, func(t risk.Transition, _ int) string { return t.String() })
	report.summarise(result.Trades)
	return report
}

// NewWalkForwardReport summarises the out-of-sample windows of a walk-forward run
func NewWalkForwardReport(result *WalkForwardResult) *Report {
	report := &Report{
		Initial:    result.Initial.Equity,
		Final:      result.Account.Equity,
		State:      result.Account.State,
		Metrics:    result.Metrics,
		Windows:    result.Windows,
		Robustness: &result.Robustness,
	}
	if len(result.Windows) > 0 {
		report.From = result.Windows[0].OutStart
		report.To = result.Windows[len(result.Windows)-1].OutEnd
	}
	report.summarise(result.Trades)
	return report
}

func (r *Report) summarise(trades []core.TradeResult) {
	live := lo.Filter(trades, func(trade core.TradeResult, _ int) bool { return !trade.Paper })
	r.returns = lo.Map(live, func(trade core.TradeResult, _ int) float64 { return trade.ReturnPct })

	groups := lo.GroupBy(live, func(trade core.TradeResult) core.StrategyName { return trade.Strategy })
	names := lo.Keys(groups)
	slices.Sort(names)

	r.Strategies = make([]StrategySummary, 0, len(names))
	for _, name := range names {
		group := groups[name]
		pnl := lo.Map(group, func(trade core.TradeResult, _ int) float64 { return trade.PnL })
		summary := StrategySummary{
			Strategy:     name,
			Trades:       len(group),
			Wins:         lo.CountBy(pnl, func(v float64) bool { return v > 0 }),
			Losses:       lo.CountBy(pnl, func(v float64) bool { return v < 0 }),
			Payoff:       metric.Payoff(pnl),
			ProfitFactor: metric.ProfitFactor(pnl),
			AverageR:     lo.MeanBy(group, func(trade core.TradeResult) float64 { return trade.RMultiple }),
			PnL:          lo.Sum(pnl),
		}
		summary.WinRate = float64(summary.Wins) / float64(summary.Trades)
		r.Strategies = append(r.Strategies, summary)
	}
}

// Render writes the strategy table, the metrics, the return histogram and
// the walk-forward windows when present
func (r *Report) Render(w io.Writer) error {
	buffer := bytes.NewBuffer(nil)

	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Strategy", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr Fact.", "Avg R", "PnL"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range r.Strategies {
		table.Append([]string{
			string(s.Strategy),
			strconv.Itoa(s.Trades),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Losses),
			fmt.Sprintf("%.1f %%", s.WinRate*100),
			fmt.Sprintf("%.3f", s.Payoff),
			fmt.Sprintf("%.3f", s.ProfitFactor),
			fmt.Sprintf("%.2f", s.AverageR),
			fmt.Sprintf("%.2f", s.PnL),
		})
	}
	m := r.Metrics
	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(m.Trades),
		strconv.Itoa(m.Wins),
		strconv.Itoa(m.Losses),
		fmt.Sprintf("%.1f %%", m.WinRate*100),
		fmt.Sprintf("%.3f", m.Payoff),
		fmt.Sprintf("%.3f", m.ProfitFactor),
		fmt.Sprintf("%.2f", m.AverageR),
		fmt.Sprintf("%.2f", r.Final-r.Initial),
	})
	table.Render()

	metrics := tablewriter.NewWriter(buffer)
	metrics.AppendBulk([][]string{
		{"Period", fmt.Sprintf("%s ~ %s", r.From.Format(time.DateOnly), r.To.Format(time.DateOnly))},
		{"Equity", fmt.Sprintf("%.2f -> %.2f", r.Initial, r.Final)},
		{"State", string(r.State)},
		{"Total return", fmt.Sprintf("%.2f %%", m.TotalReturn*100)},
		{"Max drawdown", fmt.Sprintf("%.2f %%", m.MaxDrawdown*100)},
		{"Sharpe", fmt.Sprintf("%.2f", m.Sharpe)},
		{"Sortino", fmt.Sprintf("%.2f", m.Sortino)},
		{"Recovery factor", fmt.Sprintf("%.2f", m.RecoveryFactor)},
		{"Expectancy", fmt.Sprintf("%.2f", m.Expectancy)},
		{"Best / worst", fmt.Sprintf("%.2f %% / %.2f %%", m.Best*100, m.Worst*100)},
		{"Avg win / loss", fmt.Sprintf("%.2f / %.2f", m.AvgWin, m.AvgLoss)},
		{"Streaks", fmt.Sprintf("%d wins / %d losses", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)},
		{"Avg duration", m.AverageDuration.String()},
		{"Paper trades", strconv.Itoa(m.PaperTrades)},
	})
	metrics.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	metrics.Render()

	if len(r.Windows) > 0 {
		windows := tablewriter.NewWriter(buffer)
		windows.SetHeader([]string{"#", "Out of sample", "Parameters", "Trades", "Return", "Sharpe", "Max DD"})
		for _, window := range r.Windows {
			windows.Append([]string{
				strconv.Itoa(window.Index),
				fmt.Sprintf("%s ~ %s", window.OutStart.Format(time.DateOnly), window.OutEnd.Format(time.DateOnly)),
				optimizer.FormatParameterSet(window.Parameters),
				strconv.Itoa(window.OutOfSample.Trades),
				fmt.Sprintf("%.2f %%", window.OutOfSample.TotalReturn*100),
				fmt.Sprintf("%.2f", window.OutOfSample.Sharpe),
				fmt.Sprintf("%.2f %%", window.OutOfSample.MaxDrawdown*100),
			})
		}
		windows.Render()
	}

	if r.Robustness != nil {
		fmt.Fprintf(buffer, "ROBUSTNESS: %d/10 (%s)\n", r.Robustness.Score, r.Robustness.Grade)
	}

	if len(r.returns) > 0 {
		fmt.Fprintln(buffer, "------ RETURN -------")
		percent := lo.Map(r.returns, func(v float64, _ int) float64 { return v * 100 })
		if err := histogram.Fprint(buffer, histogram.Hist(15, percent), histogram.Linear(10)); err != nil {
			return err
		}

		fmt.Fprintln(buffer, "------ CONFIDENCE INTERVAL (95%) -------")
		fmt.Fprintf(buffer, "RETURN:      %.2f%% (%.2f%% ~ %.2f%%)\n",
			m.ReturnInterval.Mean*100, m.ReturnInterval.Lower*100, m.ReturnInterval.Upper*100)
	}

	_, err := w.Write(buffer.Bytes())
	return err
}

// WriteYAML encodes the report
func (r *Report) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return err
	}
	return encoder.Close()
}

// SaveYAML writes the report to a file
func (r *Report) SaveYAML(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return r.WriteYAML(file)
}
