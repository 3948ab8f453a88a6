package strategy

import (
	"fmt"
	"sort"

	"github.com/raykavin/tradeplan/pkg/core"
)

// DefaultMinExpectedValue is the smallest net expected value accepted (0.1% of entry)
const DefaultMinExpectedValue = 0.001

// Selector evaluates every variant and ranks the qualifying ones
type Selector struct {
	variants []Variant
	costs    core.CostModel
	minEV    float64
	tracker  *Tracker
}

// SelectorOption configures a Selector
type SelectorOption func(*Selector)

// WithVariants replaces the default variant set
func WithVariants(variants ...Variant) SelectorOption {
	return func(s *Selector) {
		s.variants = variants
	}
}

// WithMinExpectedValue sets the minimum net expected value
func WithMinExpectedValue(minEV float64) SelectorOption {
	return func(s *Selector) {
		s.minEV = minEV
	}
}

// WithTracker sets the drawdown history used to break ties
func WithTracker(tracker *Tracker) SelectorOption {
	return func(s *Selector) {
		s.tracker = tracker
	}
}

// NewSelector creates a selector over the default variants
func NewSelector(costs core.CostModel, options ...SelectorOption) *Selector {
	selector := &Selector{
		variants: DefaultVariants(),
		costs:    costs,
		minEV:    DefaultMinExpectedValue,
		tracker:  NewTracker(),
	}
	for _, option := range options {
		option(selector)
	}
	return selector
}

// Tracker returns the drawdown history used by the selector
func (s *Selector) Tracker() *Tracker {
	return s.tracker
}

// Evaluate returns every triggered variant, qualifying or not, in ranking order
func (s *Selector) Evaluate(setup Setup) []core.StrategyPick {
	picks := make([]core.StrategyPick, 0, len(s.variants))
	for _, variant := range s.variants {
		eval, ok := variant.Evaluate(setup, s.costs)
		if !ok {
			continue
		}
		picks = append(picks, eval.Pick(s.tracker.MaxDrawdown(eval.Name)))
	}

	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].ExpectedValue != picks[j].ExpectedValue {
			return picks[i].ExpectedValue > picks[j].ExpectedValue
		}
		if picks[i].MaxDrawdown != picks[j].MaxDrawdown {
			return picks[i].MaxDrawdown < picks[j].MaxDrawdown
		}
		return picks[i].Name < picks[j].Name
	})

	return picks
}

// Select returns the best qualifying variant and the runner-up when there is one.
// ErrNoQualifyingStrategy is returned when no variant clears the minimum EV.
func (s *Selector) Select(setup Setup) (core.StrategyPick, *core.StrategyPick, error) {
	var qualifying []core.StrategyPick
	for _, pick := range s.Evaluate(setup) {
		if pick.ExpectedValue >= s.minEV {
			qualifying = append(qualifying, pick)
		}
	}

	if len(qualifying) == 0 {
		return core.StrategyPick{}, nil, fmt.Errorf("%w: %s at %s", core.ErrNoQualifyingStrategy,
			setup.Snapshot.Symbol, setup.Snapshot.Time.Format("2006-01-02"))
	}

	if len(qualifying) == 1 {
		return qualifying[0], nil, nil
	}

	alternative := qualifying[1]
	return qualifying[0], &alternative, nil
}
