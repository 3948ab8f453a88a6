package storage

import (
	"fmt"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var _ core.Journal = (*SQLJournal)(nil)

// SQLJournal implements core.Journal on a SQL database via GORM
type SQLJournal struct {
	db *gorm.DB
}

// FromSQLite opens a SQLite journal with GORM logging silenced
func FromSQLite(path string) (*SQLJournal, error) {
	return FromSQL(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// FromSQL creates a journal on any GORM dialect
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLJournal, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&core.TradeRecord{}, &core.AuditEntry{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLJournal{db: db}, nil
}

// upsert replaces the row with the same primary key
func (s *SQLJournal) upsert(value any) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

// RecordTrade stores a closed trade
func (s *SQLJournal) RecordTrade(record *core.TradeRecord) error {
	if err := s.upsert(record); err != nil {
		return fmt.Errorf("failed to store trade %s/%d: %w", record.RunID, record.ID, err)
	}
	return nil
}

// RecordAudit stores an audit entry
func (s *SQLJournal) RecordAudit(entry *core.AuditEntry) error {
	if err := s.upsert(entry); err != nil {
		return fmt.Errorf("failed to store audit entry %s/%d: %w", entry.RunID, entry.Seq, err)
	}
	return nil
}

// Trades retrieves trades matching every filter, ordered by close time.
// Filters are applied in memory.
func (s *SQLJournal) Trades(filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	var trades []*core.TradeRecord

	result := s.db.Order("closed_at, run_id, id").Find(&trades)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", result.Error)
	}

	return lo.Filter(trades, func(record *core.TradeRecord, _ int) bool {
		for _, filter := range filters {
			if !filter(*record) {
				return false
			}
		}
		return true
	}), nil
}

// TradesWithQuery runs a custom GORM query over the trade table
func (s *SQLJournal) TradesWithQuery(query func(*gorm.DB) *gorm.DB) ([]*core.TradeRecord, error) {
	var trades []*core.TradeRecord

	result := query(s.db).Find(&trades)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to execute query: %w", result.Error)
	}

	return trades, nil
}

// Audit retrieves the audit log of a run in sequence order
func (s *SQLJournal) Audit(runID string) ([]*core.AuditEntry, error) {
	var entries []*core.AuditEntry

	result := s.db.Where("run_id = ?", runID).Order("seq").Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch audit log: %w", result.Error)
	}

	return entries, nil
}

// WithTransaction executes fn within a database transaction
func (s *SQLJournal) WithTransaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

// Close closes the database connection
func (s *SQLJournal) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
