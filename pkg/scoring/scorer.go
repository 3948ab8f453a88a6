// Package scoring rates an indicator snapshot from 0 to 100 across five
// weighted categories and attaches the best strategy variant.
package scoring

import (
	"fmt"
	"math"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
	"github.com/raykavin/tradeplan/pkg/strategy"
)

// ErrBelowThreshold is returned for snapshots scoring under the weak tier
var ErrBelowThreshold = core.ErrBelowScoreThreshold

// Scorer builds scored candidates from snapshots
type Scorer struct {
	weights  Weights
	tiers    Tiers
	regimes  RegimeThresholds
	selector *strategy.Selector
	log      logger.Logger
}

// Option configures a Scorer
type Option func(*Scorer)

// WithWeights sets the category weights
func WithWeights(weights Weights) Option {
	return func(s *Scorer) {
		s.weights = weights
	}
}

// WithTiers sets the tier thresholds
func WithTiers(tiers Tiers) Option {
	return func(s *Scorer) {
		s.tiers = tiers
	}
}

// WithRegimeThresholds sets the regime detection thresholds
func WithRegimeThresholds(thresholds RegimeThresholds) Option {
	return func(s *Scorer) {
		s.regimes = thresholds
	}
}

// WithSelector sets the strategy selector
func WithSelector(selector *strategy.Selector) Option {
	return func(s *Scorer) {
		s.selector = selector
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(s *Scorer) {
		s.log = log
	}
}

// NewScorer creates a scorer with default weights, tiers and variants
func NewScorer(options ...Option) *Scorer {
	scorer := &Scorer{
		weights: DefaultWeights(),
		tiers:   DefaultTiers(),
		regimes: DefaultRegimeThresholds(),
		log:     zerolog.Nop(),
	}
	for _, option := range options {
		option(scorer)
	}
	if scorer.selector == nil {
		scorer.selector = strategy.NewSelector(core.DefaultCostModel())
	}
	return scorer
}

// Selector returns the strategy selector
func (s *Scorer) Selector() *strategy.Selector {
	return s.selector
}

// SubScores rates every category of the input, each clamped to [0, weight]
func (s *Scorer) SubScores(in Input) ([]core.SubScore, []core.Reference) {
	subScores := make([]core.SubScore, 0, len(rules))
	var refs []core.Reference
	seen := make(map[string]bool)

	for _, r := range rules {
		c := &card{snapshot: in.Snapshot}
		r.score(c, in)

		weight := s.weights.Of(r.category)
		score := math.Max(0, math.Min(weight, c.points*weight/r.max))
		subScores = append(subScores, core.SubScore{
			Category: r.category,
			Score:    score,
			Weight:   weight,
			Reasons:  c.reasons,
		})

		for _, ref := range c.refs {
			if !seen[ref.Name] {
				seen[ref.Name] = true
				refs = append(refs, ref)
			}
		}
	}

	return subScores, refs
}

// Score rates the snapshot and selects a strategy variant. The candidate is
// returned with ErrBelowScoreThreshold below the weak tier and with
// ErrNoQualifyingStrategy when no variant clears the minimum expected value.
func (s *Scorer) Score(in Input) (core.ScoredCandidate, error) {
	snapshot := in.Snapshot
	subScores, refs := s.SubScores(in)

	total := 0.0
	for _, sub := range subScores {
		total += sub.Score
	}

	candidate := core.ScoredCandidate{
		Symbol:     snapshot.Symbol,
		Time:       snapshot.Time,
		Score:      total,
		SubScores:  subScores,
		Regime:     s.regimes.DetectRegime(snapshot),
		References: refs,
		Snapshot:   snapshot,
	}

	tier, ok := s.tiers.Classify(total)
	if !ok {
		return candidate, fmt.Errorf("%w: %s scored %.1f", core.ErrBelowScoreThreshold, snapshot.Symbol, total)
	}
	candidate.Tier = tier

	best, alternative, err := s.selector.Select(strategy.Setup{
		Snapshot: snapshot,
		Score:    total,
		Regime:   candidate.Regime,
	})
	if err != nil {
		return candidate, err
	}

	candidate.Strategy = best
	candidate.Alternative = alternative

	s.log.WithFields(map[string]any{
		"symbol":  candidate.Symbol,
		"score":   candidate.Score,
		"tier":    candidate.Tier,
		"variant": best.Name,
		"regime":  candidate.Regime,
	}).Debug("candidate scored")

	return candidate, nil
}
