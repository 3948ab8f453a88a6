package core

import (
	"slices"
	"time"
)

// TradeRecord is the persisted form of a closed trade
type TradeRecord struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	RunID     string    `json:"run_id" gorm:"primaryKey"`
	Symbol    string    `json:"symbol" gorm:"index"`
	Sector    string    `json:"sector"`
	Strategy  string    `json:"strategy"`
	Status    string    `json:"status"`
	Paper     bool      `json:"paper"`
	Entry     float64   `json:"entry"`
	Exit      float64   `json:"exit"`
	Shares    int64     `json:"shares"`
	PnL       float64   `json:"pnl"`
	Fees      float64   `json:"fees"`
	ReturnPct float64   `json:"return_pct"`
	RMultiple float64   `json:"r_multiple"`
	OpenedAt  time.Time `json:"opened_at"`
	ClosedAt  time.Time `json:"closed_at"`
}

// NewTradeRecord converts a trade result into its persisted form
func NewTradeRecord(runID string, id int64, r TradeResult) TradeRecord {
	return TradeRecord{
		ID:        id,
		RunID:     runID,
		Symbol:    r.Symbol,
		Sector:    r.Sector,
		Strategy:  string(r.Strategy),
		Status:    string(r.Status),
		Paper:     r.Paper,
		Entry:     r.Entry,
		Exit:      r.Exit,
		Shares:    r.Shares,
		PnL:       r.PnL,
		Fees:      r.Fees,
		ReturnPct: r.ReturnPct,
		RMultiple: r.RMultiple,
		OpenedAt:  r.OpenedAt.UTC(),
		ClosedAt:  r.ClosedAt.UTC(),
	}
}

// AuditKind classifies an audit log entry
type AuditKind string

const (
	AuditSignal  AuditKind = "signal"
	AuditReject  AuditKind = "reject"
	AuditPlan    AuditKind = "plan"
	AuditFill    AuditKind = "fill"
	AuditCancel  AuditKind = "cancel"
	AuditPartial AuditKind = "partial"
	AuditExit    AuditKind = "exit"
	AuditState   AuditKind = "state"
)

// AuditEntry is one line of the decision and trade log
type AuditEntry struct {
	Seq     int64     `json:"seq" yaml:"seq" gorm:"primaryKey;autoIncrement:false"`
	RunID   string    `json:"run_id" yaml:"-" gorm:"primaryKey"`
	Time    time.Time `json:"time" yaml:"time"`
	Symbol  string    `json:"symbol" yaml:"symbol"`
	Kind    AuditKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`

	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty" gorm:"serializer:json"`
}

// Journal persists trades and audit entries of validator runs
type Journal interface {
	// RecordTrade stores a closed trade
	RecordTrade(record *TradeRecord) error

	// RecordAudit stores an audit entry
	RecordAudit(entry *AuditEntry) error

	// Trades retrieves trades matching every filter, ordered by close time
	Trades(filters ...TradeFilter) ([]*TradeRecord, error)

	// Audit retrieves the audit log of a run in sequence order
	Audit(runID string) ([]*AuditEntry, error)

	// Close releases the underlying storage
	Close() error
}

// TradeFilter selects trade records
type TradeFilter func(record TradeRecord) bool

func WithRunID(runID string) TradeFilter {
	return func(record TradeRecord) bool {
		return record.RunID == runID
	}
}

func WithSymbol(symbol string) TradeFilter {
	return func(record TradeRecord) bool {
		return record.Symbol == symbol
	}
}

func WithStatusIn(status ...PositionStatus) TradeFilter {
	return func(record TradeRecord) bool {
		return slices.Contains(status, PositionStatus(record.Status))
	}
}

func WithClosedBeforeOrEqual(t time.Time) TradeFilter {
	return func(record TradeRecord) bool {
		return !record.ClosedAt.After(t)
	}
}
