package engine

import (
	"context"
	"sync"

	"github.com/dukex/lakeflow/pkg/jsonpath"
	"github.com/dukex/lakeflow/pkg/models"
	"golang.org/x/sync/semaphore"
)

// runMap runs the iterator once per item with at most MaxConcurrency forks in
// flight (unbounded when zero). Results keep item order. After the first fork
// failure no further forks start; forks already running finish before the
// failure is returned.
func (e *Engine) runMap(ctx context.Context, info StepInfo, st *models.State, input any, cobj contextObject) (any, error) {
	selected, err := jsonpath.Get(input, st.ItemsPath)
	if err != nil {
		return nil, &RuntimeError{State: info.State, Err: err}
	}

	items, ok := selected.([]any)
	if !ok {
		return nil, &RuntimeError{State: info.State, Err: ErrNotASequence}
	}

	results := make([]any, len(items))
	if len(items) == 0 {
		return results, nil
	}

	limit := int64(st.MaxConcurrency)
	if limit <= 0 {
		limit = int64(len(items))
	}

	sem := semaphore.NewWeighted(limit)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failure  *MapForkFailure
		acquired error
	)

	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()

		return failure != nil
	}

	for i, item := range items {
		acquired = sem.Acquire(ctx, 1)
		if acquired != nil || failed() {
			if acquired == nil {
				sem.Release(1)
			}

			break
		}

		wg.Add(1)

		go func(index int, item any) {
			defer wg.Done()
			defer sem.Release(1)

			output, err := e.runMapItem(ctx, st, index, item, input, cobj)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if failure == nil {
					failure = &MapForkFailure{State: info.State, Index: index, Err: err}
				}

				return
			}

			results[index] = output
		}(i, item)
	}

	wg.Wait()

	if failure != nil {
		return nil, failure
	}

	if acquired != nil {
		return nil, acquired
	}

	return results, nil
}

func (e *Engine) runMapItem(ctx context.Context, st *models.State, index int, item any, input any, cobj contextObject) (any, error) {
	itemCtx := cobj.withItem(index, item)

	forkInput := item
	if st.Parameters != nil {
		resolved, err := jsonpath.Resolve(st.Parameters, input, itemCtx.value())
		if err != nil {
			return nil, &RuntimeError{State: st.Iterator.StartAt, Err: err}
		}

		forkInput = resolved
	}

	return e.runDefinition(ctx, st.Iterator, forkInput, itemCtx)
}
