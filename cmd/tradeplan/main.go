package main

import (
	"fmt"
	"os"

	"github.com/raykavin/tradeplan"
	"github.com/raykavin/tradeplan/internal/config"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/storage"
	"github.com/spf13/cobra"
)

// Command line flags
var (
	configPath  string
	equity      float64
	journalPath string
	sqlitePath  string
	reportPath  string
	metricsPath string
	csvPath     string
	outputPath  string
	accountPath string
	savePath    string
	shockDate   string
	topN        int
	progress    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tradeplan",
		Short:         "Equity trade plans, backtests and walk-forward validation",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Configuration file")

	rootCmd.AddCommand(
		buildPlanCmd(),
		buildBacktestCmd(),
		buildWalkForwardCmd(),
		buildStressCmd(),
		buildConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and replaces the package logger with
// the configured one
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := tradeplan.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	tradeplan.DefaultLog = log

	return cfg, nil
}

// openJournal opens the journal selected by flags, falling back to the
// configured one. A nil journal disables journaling.
func openJournal(cfg *config.Config) (core.Journal, error) {
	driver, path := cfg.Journal.Driver, cfg.Journal.Path
	switch {
	case sqlitePath != "":
		driver, path = config.JournalSQLite, sqlitePath
	case journalPath != "":
		driver, path = config.JournalBuntDB, journalPath
	}

	switch driver {
	case config.JournalBuntDB:
		return storage.FromFile(path)
	case config.JournalSQLite:
		return storage.FromSQLite(path)
	default:
		return nil, nil
	}
}
