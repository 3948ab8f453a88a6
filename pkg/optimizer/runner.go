package optimizer

import (
	"context"
	"fmt"

	"github.com/raykavin/tradeplan/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// runEvaluations evaluates every parameter set on at most parallelism
// workers. Results keep the order of parameterSets; the first error cancels
// the remaining evaluations.
func runEvaluations(ctx context.Context, evaluator Evaluator, parameterSets []ParameterSet,
	parallelism int, log logger.Logger) ([]*Result, error) {

	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]*Result, len(parameterSets))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for i, params := range parameterSets {
		i, params := i, params
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			log.Debugf("Evaluating parameter set %d/%d %s", i+1, len(parameterSets), FormatParameterSet(params))

			result, err := evaluator.Evaluate(ctx, params)
			if err != nil {
				return fmt.Errorf("evaluation error: %w", err)
			}

			result.Index = i
			result.Parameters = params
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
