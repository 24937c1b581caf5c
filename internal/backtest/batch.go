package backtest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rzcastilho/trading-strategy-sub000/internal/types"
	"github.com/rzcastilho/trading-strategy-sub000/pkg/errors"
)

// BatchRunner backtests several strategies over the same bar history
// concurrently. Each strategy gets its own isolated engine, so runs never
// share mutable state.
type BatchRunner struct {
	runner *Runner
	// Parallelism caps concurrent runs. Zero means unbounded.
	Parallelism int
}

// NewBatchRunner wraps a Runner for concurrent multi-strategy runs.
func NewBatchRunner(runner *Runner) *BatchRunner {
	return &BatchRunner{runner: runner}
}

// RunAll backtests every strategy and returns the results in input order.
// The first failing run cancels the rest.
func (b *BatchRunner) RunAll(ctx context.Context, defs []*types.StrategyDefinition, bars []types.Bar, cfg RunConfig) ([]*Result, error) {
	if len(defs) == 0 {
		return nil, errors.New(errors.ErrCodeBacktestNoStrategies, "no strategies to run")
	}

	results := make([]*Result, len(defs))

	group, groupCtx := errgroup.WithContext(ctx)
	if b.Parallelism > 0 {
		group.SetLimit(b.Parallelism)
	}

	for i, def := range defs {
		group.Go(func() error {
			result, err := b.runner.Run(groupCtx, def, bars, cfg)
			if err != nil {
				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
