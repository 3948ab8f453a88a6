package core

import (
	"sort"
	"time"
)

// DrawdownState is the risk escalation level of an account
type DrawdownState string

const (
	StateNormal    DrawdownState = "NORMAL"
	StateReduced   DrawdownState = "REDUCED"
	StateMinimal   DrawdownState = "MINIMAL"
	StatePaperOnly DrawdownState = "PAPER_ONLY"
	StateHalted    DrawdownState = "HALTED"
)

// AccountState is the versioned account snapshot threaded through the engine.
// Every mutation goes through Next so callers keep the previous version intact.
type AccountState struct {
	Version   uint64    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updated_at"`

	Cash      float64    `yaml:"cash"`
	Equity    float64    `yaml:"equity"`
	Positions []Position `yaml:"positions,omitempty"`

	ConsecutiveLosses int `yaml:"consecutive_losses"`
	ConsecutiveWins   int `yaml:"consecutive_wins"`

	MonthStart       time.Time `yaml:"month_start"`
	MonthStartEquity float64   `yaml:"month_start_equity"`
	MonthlyPnL       float64   `yaml:"monthly_pnl"`

	State        DrawdownState `yaml:"state"`
	RiskFraction float64       `yaml:"risk_fraction"`

	PaperSince time.Time `yaml:"paper_since"`
	PaperPnL   float64   `yaml:"paper_pnl"`

	NextPositionID int64 `yaml:"next_position_id"`
}

// NewAccountState creates a NORMAL account holding only cash
func NewAccountState(equity, riskFraction float64, at time.Time) AccountState {
	return AccountState{
		UpdatedAt:        at,
		Cash:             equity,
		Equity:           equity,
		MonthStart:       MonthOf(at),
		MonthStartEquity: equity,
		State:            StateNormal,
		RiskFraction:     riskFraction,
		NextPositionID:   1,
	}
}

// MonthOf truncates t to the first instant of its calendar month
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Next returns a deep copy with the version bumped
func (a AccountState) Next(at time.Time) AccountState {
	next := a
	next.Positions = make([]Position, len(a.Positions))
	copy(next.Positions, a.Positions)
	next.Version = a.Version + 1
	if at.After(next.UpdatedAt) {
		next.UpdatedAt = at
	}
	return next
}

// Halted reports whether no new plan may be emitted
func (a AccountState) Halted() bool { return a.State == StateHalted }

// OpenPositions returns the live positions, paper ones included
func (a AccountState) OpenPositions() []Position {
	open := make([]Position, 0, len(a.Positions))
	for _, p := range a.Positions {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open
}

// LiveCount returns the number of open positions that use real capital
func (a AccountState) LiveCount() int {
	count := 0
	for _, p := range a.Positions {
		if p.IsOpen() && !p.Paper {
			count++
		}
	}
	return count
}

// Position finds the open position of a symbol
func (a AccountState) Position(symbol string) (Position, bool) {
	for _, p := range a.Positions {
		if p.Symbol == symbol && p.IsOpen() {
			return p, true
		}
	}
	return Position{}, false
}

// SectorExposure returns the marked value of live positions in a sector
func (a AccountState) SectorExposure(sector string) float64 {
	total := 0.0
	for _, p := range a.Positions {
		if p.IsOpen() && !p.Paper && p.Sector == sector {
			total += p.MarketValue()
		}
	}
	return total
}

// WithPosition returns a new version holding the position
func (a AccountState) WithPosition(p Position, at time.Time) AccountState {
	next := a.Next(at)
	if p.ID == 0 {
		p.ID = next.NextPositionID
		next.NextPositionID++
	}
	next.Positions = append(next.Positions, p)
	sort.SliceStable(next.Positions, func(i, j int) bool {
		if next.Positions[i].Symbol != next.Positions[j].Symbol {
			return next.Positions[i].Symbol < next.Positions[j].Symbol
		}
		return next.Positions[i].ID < next.Positions[j].ID
	})
	return next
}

// ReplacePosition returns a new version with the position of the same ID replaced
func (a AccountState) ReplacePosition(p Position, at time.Time) AccountState {
	next := a.Next(at)
	for i := range next.Positions {
		if next.Positions[i].ID == p.ID {
			next.Positions[i] = p
		}
	}
	return next
}

// Prune drops closed positions
func (a AccountState) Prune(at time.Time) AccountState {
	next := a.Next(at)
	next.Positions = next.OpenPositions()
	return next
}

// Revalue recomputes equity from cash and live marked positions
func (a AccountState) Revalue() AccountState {
	equity := a.Cash
	for _, p := range a.Positions {
		if p.IsOpen() && !p.Paper {
			equity += p.MarketValue()
		}
	}
	a.Equity = equity
	if a.MonthStartEquity > 0 {
		a.MonthlyPnL = (a.Equity - a.MonthStartEquity) / a.MonthStartEquity
	}
	return a
}

// RollMonth restarts monthly tracking when t falls in a later month
func (a AccountState) RollMonth(t time.Time) AccountState {
	month := MonthOf(t)
	if !month.After(a.MonthStart) {
		return a
	}
	a.MonthStart = month
	a.MonthStartEquity = a.Equity
	a.MonthlyPnL = 0
	return a
}
