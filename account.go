package tradeplan

import (
	"errors"
	"fmt"
	"os"

	"github.com/raykavin/tradeplan/pkg/core"
	"gopkg.in/yaml.v3"
)

// LoadAccount reads an account snapshot written by SaveAccount. A missing
// state defaults to NORMAL and a missing risk fraction to the one of its
// state; equity is recomputed from cash and open positions.
func (e *Engine) LoadAccount(path string) (core.AccountState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return core.AccountState{}, fmt.Errorf("reading account: %w", err)
	}

	var account core.AccountState
	if err := yaml.Unmarshal(raw, &account); err != nil {
		return core.AccountState{}, fmt.Errorf("decoding account %s: %w", path, err)
	}

	switch account.State {
	case "":
		account.State = core.StateNormal
	case core.StateNormal, core.StateReduced, core.StateMinimal, core.StatePaperOnly, core.StateHalted:
	default:
		return core.AccountState{}, fmt.Errorf("account %s: unknown state %q", path, account.State)
	}
	if account.Cash < 0 {
		return core.AccountState{}, fmt.Errorf("account %s: negative cash %.2f", path, account.Cash)
	}
	if len(account.Positions) == 0 && account.Cash == 0 {
		return core.AccountState{}, errors.New("account holds neither cash nor positions")
	}

	if account.RiskFraction == 0 {
		account.RiskFraction = e.pipeline.Risk().Drawdown().RiskFraction(account.State)
	}
	if account.NextPositionID == 0 {
		account.NextPositionID = int64(len(account.Positions)) + 1
	}
	if account.MonthStart.IsZero() {
		account.MonthStart = core.MonthOf(account.UpdatedAt)
	}

	account = account.Revalue()
	if account.MonthStartEquity == 0 {
		account.MonthStartEquity = account.Equity
	}
	return account, nil
}

// SaveAccount writes an account snapshot as YAML
func SaveAccount(path string, account core.AccountState) error {
	raw, err := yaml.Marshal(account)
	if err != nil {
		return fmt.Errorf("encoding account: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing account: %w", err)
	}
	return nil
}
