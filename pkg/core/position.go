package core

import (
	"fmt"
	"time"
)

// PositionStatus is the lifecycle state of a position
type PositionStatus string

const (
	StatusOpen           PositionStatus = "OPEN"
	StatusStopped        PositionStatus = "STOPPED"
	StatusTargetHit      PositionStatus = "TARGET_HIT"
	StatusTimeExit       PositionStatus = "TIME_EXIT"
	StatusManuallyClosed PositionStatus = "MANUALLY_CLOSED"
)

// Terminal reports whether the status can no longer change
func (s PositionStatus) Terminal() bool {
	return s != StatusOpen && s != ""
}

// Position is a filled long position
type Position struct {
	ID       int64        `yaml:"id"`
	Symbol   string       `yaml:"symbol"`
	Sector   string       `yaml:"sector"`
	Strategy StrategyName `yaml:"strategy"`
	Paper    bool         `yaml:"paper"`

	EntryPrice  float64 `yaml:"entry_price"`
	Stop        float64 `yaml:"stop"`
	InitialStop float64 `yaml:"initial_stop"`
	TP1         float64 `yaml:"tp1"`
	TP2         float64 `yaml:"tp2"`
	ATR         float64 `yaml:"atr"`

	Shares        int64 `yaml:"shares"`
	InitialShares int64 `yaml:"initial_shares"`

	SignalTime time.Time `yaml:"signal_time"`
	OpenedAt   time.Time `yaml:"opened_at"`
	ClosedAt   time.Time `yaml:"closed_at"`

	Highest   float64 `yaml:"highest"`
	LastPrice float64 `yaml:"last_price"`
	TP1Hit    bool    `yaml:"tp1_hit"`

	// Realized accumulates net P&L of partial and final exits
	Realized float64 `yaml:"realized"`
	Fees     float64 `yaml:"fees"`

	ExitPrice float64        `yaml:"exit_price"`
	Status    PositionStatus `yaml:"status"`
}

// IsOpen reports whether the position is still live
func (p Position) IsOpen() bool { return p.Status == StatusOpen }

// MarketValue returns the marked value of the remaining shares
func (p Position) MarketValue() float64 { return p.LastPrice * float64(p.Shares) }

// CostBasis returns the entry value of the remaining shares
func (p Position) CostBasis() float64 { return p.EntryPrice * float64(p.Shares) }

// UnrealizedPnL returns the mark-to-market P&L of the remaining shares
func (p Position) UnrealizedPnL() float64 {
	return (p.LastPrice - p.EntryPrice) * float64(p.Shares)
}

// InitialRisk returns the money at risk when the position was opened
func (p Position) InitialRisk() float64 {
	return (p.EntryPrice - p.InitialStop) * float64(p.InitialShares)
}

// Close moves the position to a terminal status
func (p Position) Close(status PositionStatus, price float64, at time.Time) (Position, error) {
	if p.Status.Terminal() {
		return p, fmt.Errorf("%w: %s is %s", ErrPositionClosed, p.Symbol, p.Status)
	}
	if !status.Terminal() {
		return p, fmt.Errorf("invalid close status %q for %s", status, p.Symbol)
	}

	p.Status = status
	p.ExitPrice = price
	p.ClosedAt = at
	p.LastPrice = price
	return p, nil
}

// Result summarises a closed position
func (p Position) Result() TradeResult {
	result := TradeResult{
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Sector:     p.Sector,
		Strategy:   p.Strategy,
		Status:     p.Status,
		Paper:      p.Paper,
		Entry:      p.EntryPrice,
		Exit:       p.ExitPrice,
		Shares:     p.InitialShares,
		PnL:        p.Realized,
		Fees:       p.Fees,
		SignalTime: p.SignalTime,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   p.ClosedAt,
		Duration:   p.ClosedAt.Sub(p.OpenedAt),
	}

	if basis := p.EntryPrice * float64(p.InitialShares); basis > 0 {
		result.ReturnPct = p.Realized / basis
	}

	if risk := p.InitialRisk(); risk > 0 {
		result.RMultiple = p.Realized / risk
	}

	return result
}

// TradeResult is the outcome of a closed position
type TradeResult struct {
	PositionID int64
	Symbol     string
	Sector     string
	Strategy   StrategyName
	Status     PositionStatus
	Paper      bool

	Entry  float64
	Exit   float64
	Shares int64

	PnL       float64
	Fees      float64
	ReturnPct float64
	RMultiple float64

	SignalTime time.Time
	OpenedAt   time.Time
	ClosedAt   time.Time
	Duration   time.Duration
}

// IsWin reports whether the trade closed with a positive net P&L
func (r TradeResult) IsWin() bool { return r.PnL > 0 }
