package core

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory    = errors.New("insufficient history")
	ErrInvalidBar             = errors.New("invalid bar")
	ErrNoQualifyingStrategy   = errors.New("no qualifying strategy")
	ErrRiskLimitExceeded      = errors.New("risk limit exceeded")
	ErrBelowMinimumRewardRisk = errors.New("below minimum reward:risk")
	ErrLookAheadViolation     = errors.New("look-ahead violation")
	ErrBelowScoreThreshold    = errors.New("score below threshold")
	ErrPositionClosed         = errors.New("position already closed")
	ErrNegativeValue          = errors.New("negative value")

	// ErrTradingHalted is the account-level form of ErrRiskLimitExceeded.
	ErrTradingHalted = fmt.Errorf("%w: trading halted pending review", ErrRiskLimitExceeded)
)

// RejectionReason maps an engine error to the stable label used in audit logs and metrics.
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTradingHalted):
		return "halted"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrInvalidBar):
		return "invalid_bar"
	case errors.Is(err, ErrBelowScoreThreshold):
		return "below_score"
	case errors.Is(err, ErrNoQualifyingStrategy):
		return "no_strategy"
	case errors.Is(err, ErrBelowMinimumRewardRisk):
		return "reward_risk"
	case errors.Is(err, ErrRiskLimitExceeded):
		return "risk_limit"
	case errors.Is(err, ErrLookAheadViolation):
		return "look_ahead"
	default:
		return "error"
	}
}
