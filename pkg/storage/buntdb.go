package storage

import (
	"encoding/json"
	"fmt"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/tidwall/buntdb"
)

const (
	tradePrefix = "trade:"
	auditPrefix = "audit:"
	closeIndex  = "trade_close_index"
)

var _ core.Journal = (*BuntJournal)(nil)

// BuntJournal implements core.Journal on BuntDB. Records are keyed by run
// and sequence, so replaying a run overwrites its previous records.
type BuntJournal struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory journal
func FromMemory() (*BuntJournal, error) {
	return NewBuntJournal(":memory:")
}

// FromFile creates a file-based journal
func FromFile(file string) (*BuntJournal, error) {
	return NewBuntJournal(file)
}

// NewBuntJournal opens a BuntDB journal
func NewBuntJournal(sourceFile string) (*BuntJournal, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex(closeIndex, tradePrefix+"*", buntdb.IndexJSON("closed_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntJournal{db: db}, nil
}

func tradeKey(runID string, id int64) string {
	return fmt.Sprintf("%s%s:%012d", tradePrefix, runID, id)
}

func auditKey(runID string, seq int64) string {
	return fmt.Sprintf("%s%s:%012d", auditPrefix, runID, seq)
}

func (b *BuntJournal) set(key string, value any) error {
	content, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
		return nil
	})
}

// RecordTrade stores a closed trade
func (b *BuntJournal) RecordTrade(record *core.TradeRecord) error {
	return b.set(tradeKey(record.RunID, record.ID), record)
}

// RecordAudit stores an audit entry
func (b *BuntJournal) RecordAudit(entry *core.AuditEntry) error {
	return b.set(auditKey(entry.RunID, entry.Seq), entry)
}

// Trades retrieves trades matching every filter, ordered by close time
func (b *BuntJournal) Trades(filters ...core.TradeFilter) ([]*core.TradeRecord, error) {
	trades := make([]*core.TradeRecord, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.Ascend(closeIndex, func(key, value string) bool {
			var record core.TradeRecord
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				decodeErr = fmt.Errorf("failed to unmarshal %s: %w", key, err)
				return false
			}

			for _, filter := range filters {
				if !filter(record) {
					return true
				}
			}

			trades = append(trades, &record)
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate over trades: %w", err)
		}
		return decodeErr
	})

	if err != nil {
		return nil, err
	}

	return trades, nil
}

// Audit retrieves the audit log of a run in sequence order
func (b *BuntJournal) Audit(runID string) ([]*core.AuditEntry, error) {
	entries := make([]*core.AuditEntry, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendKeys(auditPrefix+runID+":*", func(key, value string) bool {
			var entry core.AuditEntry
			if err := json.Unmarshal([]byte(value), &entry); err != nil {
				decodeErr = fmt.Errorf("failed to unmarshal %s: %w", key, err)
				return false
			}
			entries = append(entries, &entry)
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate over audit log: %w", err)
		}
		return decodeErr
	})

	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Close closes the database
func (b *BuntJournal) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
