package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raykavin/tradeplan"
	"github.com/raykavin/tradeplan/internal/config"
	"github.com/raykavin/tradeplan/pkg/backtest"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/raykavin/tradeplan/pkg/optimizer"
	"github.com/spf13/cobra"
)

func buildPlanCmd() *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Emit trade plans for the latest bar of every instrument",
		RunE:  runPlan,
	}
	planCmd.Flags().Float64VarP(&equity, "equity", "e", 0, "Account equity (defaults to the configured equity)")
	planCmd.Flags().StringVarP(&accountPath, "account", "a", "", "Plan against an account snapshot in YAML instead of a fresh account")
	return planCmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if equity > 0 {
		cfg.Equity = equity
	}

	engine, err := tradeplan.New(*cfg)
	if err != nil {
		return err
	}

	instruments, err := engine.LoadInstruments()
	if err != nil {
		return err
	}

	account := engine.NewAccount(time.Now())
	if accountPath != "" {
		if account, err = engine.LoadAccount(accountPath); err != nil {
			return err
		}
	}

	results, err := engine.Plan(cmd.Context(), instruments, account)
	if err != nil {
		return err
	}

	renderPlans(cmd, results)
	return nil
}

func renderPlans(cmd *cobra.Command, results []decision.Result) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Symbol", "Date", "Score", "Tier", "Strategy", "Entry", "Stop", "TP1", "TP2", "Shares", "R:R", "Status"})

	for _, result := range results {
		row := []string{result.Symbol, result.Time.Format(config.DateLayout)}
		switch {
		case result.Accepted():
			plan := result.Plan
			status := "live"
			if plan.Paper {
				status = "paper"
			}
			row = append(row,
				fmt.Sprintf("%.1f", plan.Score),
				string(plan.Tier),
				string(plan.Strategy),
				fmt.Sprintf("%.2f", plan.Entry),
				fmt.Sprintf("%.2f", plan.Stop),
				fmt.Sprintf("%.2f", plan.TP1),
				fmt.Sprintf("%.2f", plan.TP2),
				strconv.FormatInt(plan.Shares, 10),
				fmt.Sprintf("%.2f", plan.RewardRisk),
				status,
			)
		case result.Candidate != nil:
			row = append(row,
				fmt.Sprintf("%.1f", result.Candidate.Score),
				string(result.Candidate.Tier),
				"", "", "", "", "", "", "",
				result.Reason(),
			)
		default:
			row = append(row, "", "", "", "", "", "", "", "", "", result.Reason())
		}
		table.Append(row)
	}

	table.Render()
}

func buildBacktestCmd() *cobra.Command {
	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the configured feed bar by bar",
		RunE:  runBacktest,
	}

	backtestCmd.Flags().StringVar(&journalPath, "journal", "", "Write trades and audit to a buntdb file")
	backtestCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Write trades and audit to a sqlite database")
	backtestCmd.Flags().StringVarP(&reportPath, "report", "r", "", "Save the report as YAML")
	backtestCmd.Flags().StringVar(&metricsPath, "metrics", "", "Save Prometheus metrics in text format")
	backtestCmd.Flags().StringVar(&savePath, "save-account", "", "Save the final account snapshot as YAML")
	backtestCmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar")

	return backtestCmd
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	registry := prometheus.NewRegistry()
	options := []tradeplan.Option{
		tradeplan.WithRegistry(registry),
		tradeplan.WithProgress(progress || cfg.Backtest.Progress),
	}
	if journal != nil {
		options = append(options, tradeplan.WithJournal(journal))
	}

	engine, err := tradeplan.New(*cfg, options...)
	if err != nil {
		return err
	}

	instruments, err := engine.LoadInstruments()
	if err != nil {
		return err
	}

	result, err := engine.Backtest(cmd.Context(), instruments)
	if err != nil {
		return err
	}

	report := backtest.NewReport(result)
	if err := report.Render(cmd.OutOrStdout()); err != nil {
		return err
	}

	if path := firstNonEmpty(reportPath, cfg.Backtest.Report); path != "" {
		if err := report.SaveYAML(path); err != nil {
			return err
		}
	}
	if metricsPath != "" {
		if err := prometheus.WriteToTextfile(metricsPath, registry); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	if savePath != "" {
		if err := tradeplan.SaveAccount(savePath, result.Account); err != nil {
			return err
		}
	}
	return nil
}

func buildWalkForwardCmd() *cobra.Command {
	walkCmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Optimise in-sample windows and validate out of sample",
		RunE:  runWalkForward,
	}

	walkCmd.Flags().StringVar(&csvPath, "csv", "", "Save the chosen parameters and out-of-sample metrics per window as CSV")
	walkCmd.Flags().StringVarP(&reportPath, "report", "r", "", "Save the report as YAML")
	walkCmd.Flags().StringVar(&journalPath, "journal", "", "Write out-of-sample trades and audit to a buntdb file")
	walkCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Write out-of-sample trades and audit to a sqlite database")
	walkCmd.Flags().IntVar(&topN, "top", 3, "Show the best N in-sample parameter sets of each window, 0 to skip")

	return walkCmd
}

func runWalkForward(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}

	var options []tradeplan.Option
	if journal != nil {
		defer journal.Close()
		options = append(options, tradeplan.WithJournal(journal))
	}

	engine, err := tradeplan.New(*cfg, options...)
	if err != nil {
		return err
	}

	instruments, err := engine.LoadInstruments()
	if err != nil {
		return err
	}

	result, err := engine.WalkForward(cmd.Context(), instruments)
	if err != nil {
		return err
	}

	if topN > 0 {
		for _, window := range result.Windows {
			fmt.Fprintf(cmd.OutOrStdout(), "Window %d in-sample %s to %s\n", window.Index,
				window.InStart.Format(config.DateLayout), window.InEnd.Format(config.DateLayout))
			optimizer.PrintResults(cmd.OutOrStdout(), window.Ranked, cfg.WalkForward.Target, topN)
		}
	}

	report := backtest.NewWalkForwardReport(result)
	if err := report.Render(cmd.OutOrStdout()); err != nil {
		return err
	}

	if path := firstNonEmpty(reportPath, cfg.Backtest.Report); path != "" {
		if err := report.SaveYAML(path); err != nil {
			return err
		}
	}
	if csvPath != "" {
		if err := optimizer.SaveResultsToCSV(result.WindowResults(), csvPath); err != nil {
			return err
		}
	}
	return nil
}

func buildStressCmd() *cobra.Command {
	stressCmd := &cobra.Command{
		Use:   "stress",
		Short: "Replay the configured feed under market shock scenarios",
		RunE:  runStress,
	}

	stressCmd.Flags().StringVarP(&reportPath, "report", "r", "", "Save the stress result as YAML")
	stressCmd.Flags().StringVar(&shockDate, "shock", "", "First shocked date (YYYY-MM-DD), defaults to the configured one")

	return stressCmd
}

func runStress(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if shockDate != "" {
		cfg.Stress.Shock = shockDate
	}

	engine, err := tradeplan.New(*cfg)
	if err != nil {
		return err
	}

	instruments, err := engine.LoadInstruments()
	if err != nil {
		return err
	}

	result, err := engine.StressTest(cmd.Context(), instruments)
	if err != nil {
		return err
	}

	if err := result.Render(cmd.OutOrStdout()); err != nil {
		return err
	}
	if reportPath != "" {
		return result.SaveYAML(reportPath)
	}
	return nil
}

func buildConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(outputPath); err == nil {
				return fmt.Errorf("%s already exists", outputPath)
			}
			if err := config.SaveDefault(outputPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "default configuration written to %s\n", outputPath)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigPath, "Output file path")

	configCmd.AddCommand(initCmd)
	return configCmd
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
