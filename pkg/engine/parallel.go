package engine

import (
	"context"
	"sync"

	"github.com/dukex/lakeflow/pkg/models"
	"golang.org/x/sync/errgroup"
)

// runParallel runs every branch on a copy of the input and returns their
// outputs in branch order. Branches are not cancelled when a sibling fails;
// the first failure is reported once all branches have returned.
func (e *Engine) runParallel(ctx context.Context, info StepInfo, st *models.State, input any, cobj contextObject) (any, error) {
	results := make([]any, len(st.Branches))

	var (
		g       errgroup.Group
		mu      sync.Mutex
		failure *ParallelBranchFailure
	)

	for i, branch := range st.Branches {
		g.Go(func() error {
			output, err := e.runDefinition(ctx, branch, input, cobj)
			if err != nil {
				mu.Lock()
				defer mu.Unlock()

				if failure == nil {
					failure = &ParallelBranchFailure{State: info.State, Branch: i, Err: err}
				}

				return failure
			}

			results[i] = output

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, failure
	}

	return results, nil
}
