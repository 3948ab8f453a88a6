package tradeplan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raykavin/tradeplan/pkg/backtest"
	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/logger"
)

// Option is a functional option for configuring an Engine
type Option func(*Engine)

// WithLogger replaces DefaultLog
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithJournal stores closed trades and the audit trail of every run
func WithJournal(journal core.Journal) Option {
	return func(e *Engine) {
		e.journal = journal
	}
}

// WithRegistry exports decision and execution metrics on reg
func WithRegistry(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithObserver receives the fills, state changes and equity of backtests
func WithObserver(observer backtest.Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, observer)
	}
}

// WithProgress shows a progress bar during single backtests
func WithProgress(enabled bool) Option {
	return func(e *Engine) {
		e.progress = enabled
	}
}
