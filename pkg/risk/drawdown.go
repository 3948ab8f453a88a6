package risk

import (
	"fmt"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
)

// Transition records a change of drawdown state
type Transition struct {
	From   core.DrawdownState
	To     core.DrawdownState
	Reason string
	At     time.Time
}

// Changed reports whether the state moved
func (t Transition) Changed() bool { return t.From != t.To }

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Reason)
}

// DrawdownMachine escalates and relaxes risk after closed trades.
//
//	NORMAL --3 losses--> REDUCED --5 losses--> MINIMAL
//	MINIMAL --3 wins--> REDUCED --2 wins--> NORMAL
//	any --monthly -6%--> PAPER_ONLY --7 days, paper P&L > 0--> NORMAL
//	any --monthly -10%--> HALTED, left only through Reset
type DrawdownMachine struct {
	cfg DrawdownConfig
}

// NewDrawdownMachine creates a state machine with the given thresholds
func NewDrawdownMachine(cfg DrawdownConfig) DrawdownMachine {
	return DrawdownMachine{cfg: cfg}
}

// RiskFraction returns the equity fraction risked per trade in a state
func (m DrawdownMachine) RiskFraction(state core.DrawdownState) float64 {
	switch state {
	case core.StateNormal, core.StatePaperOnly:
		return m.cfg.NormalRisk
	case core.StateReduced:
		return m.cfg.ReducedRisk
	case core.StateMinimal:
		return m.cfg.MinimalRisk
	default:
		return 0
	}
}

// MaxPositions returns the open position limit in a state
func (m DrawdownMachine) MaxPositions(state core.DrawdownState, configured int) int {
	switch state {
	case core.StateHalted:
		return 0
	case core.StateMinimal:
		return min(configured, m.cfg.MinimalMaxPositions)
	default:
		return configured
	}
}

// OnClose books a closed trade and re-evaluates the state. The account
// must already carry the revalued equity and monthly P&L.
func (m DrawdownMachine) OnClose(account core.AccountState, result core.TradeResult) (core.AccountState, Transition) {
	next := account.Next(result.ClosedAt)

	switch {
	case result.Paper:
		next.PaperPnL += result.PnL
	case result.PnL > 0:
		next.ConsecutiveWins++
		next.ConsecutiveLosses = 0
	case result.PnL < 0:
		next.ConsecutiveLosses++
		next.ConsecutiveWins = 0
	}

	return m.Evaluate(next, result.ClosedAt)
}

// Evaluate applies the monthly limits and loss ladder to the current counters
func (m DrawdownMachine) Evaluate(account core.AccountState, at time.Time) (core.AccountState, Transition) {
	from := account.State
	to, reason := m.next(account, at)

	if to != from {
		switch {
		case to == core.StatePaperOnly:
			account.PaperSince = at
			account.PaperPnL = 0
		case from == core.StatePaperOnly && to == core.StateNormal:
			account = restart(account, at)
		case from == core.StateMinimal && to == core.StateReduced,
			from == core.StateReduced && to == core.StateNormal:
			account.ConsecutiveWins = 0
		}
	}

	account.State = to
	account.RiskFraction = m.RiskFraction(to)

	return account, Transition{From: from, To: to, Reason: reason, At: at}
}

func (m DrawdownMachine) next(a core.AccountState, at time.Time) (core.DrawdownState, string) {
	if a.State == core.StateHalted {
		return core.StateHalted, "awaiting reset"
	}

	if a.MonthlyPnL <= m.cfg.HaltMonthlyPnL {
		return core.StateHalted, fmt.Sprintf("monthly P&L %.2f%% at or below %.2f%%", a.MonthlyPnL*100, m.cfg.HaltMonthlyPnL*100)
	}

	if a.State == core.StatePaperOnly {
		if at.Sub(a.PaperSince) >= m.cfg.paperRecovery() && a.PaperPnL > 0 {
			return core.StateNormal, fmt.Sprintf("paper P&L %.2f positive after %s", a.PaperPnL, m.cfg.PaperRecovery)
		}
		return core.StatePaperOnly, "paper trading"
	}

	if a.MonthlyPnL <= m.cfg.PaperMonthlyPnL {
		return core.StatePaperOnly, fmt.Sprintf("monthly P&L %.2f%% at or below %.2f%%", a.MonthlyPnL*100, m.cfg.PaperMonthlyPnL*100)
	}

	losses, wins := a.ConsecutiveLosses, a.ConsecutiveWins

	switch a.State {
	case core.StateNormal:
		if losses >= m.cfg.MinimalAfterLosses {
			return core.StateMinimal, fmt.Sprintf("%d consecutive losses", losses)
		}
		if losses >= m.cfg.ReduceAfterLosses {
			return core.StateReduced, fmt.Sprintf("%d consecutive losses", losses)
		}
	case core.StateReduced:
		if losses >= m.cfg.MinimalAfterLosses {
			return core.StateMinimal, fmt.Sprintf("%d consecutive losses", losses)
		}
		if wins >= m.cfg.RecoverReducedWins {
			return core.StateNormal, fmt.Sprintf("%d consecutive wins", wins)
		}
	case core.StateMinimal:
		if wins >= m.cfg.RecoverMinimalWins {
			return core.StateReduced, fmt.Sprintf("%d consecutive wins", wins)
		}
	}

	return a.State, "unchanged"
}

// Reset returns a halted or restricted account to NORMAL after review
func (m DrawdownMachine) Reset(account core.AccountState, at time.Time) (core.AccountState, Transition) {
	from := account.State

	next := restart(account.Next(at), at)
	next.State = core.StateNormal
	next.RiskFraction = m.RiskFraction(core.StateNormal)
	next.PaperSince = time.Time{}
	next.PaperPnL = 0

	return next, Transition{From: from, To: core.StateNormal, Reason: "manual reset", At: at}
}

// restart clears the streak counters and starts monthly tracking afresh
func restart(a core.AccountState, at time.Time) core.AccountState {
	a.ConsecutiveLosses = 0
	a.ConsecutiveWins = 0
	a.MonthStart = core.MonthOf(at)
	a.MonthStartEquity = a.Equity
	a.MonthlyPnL = 0
	return a
}
