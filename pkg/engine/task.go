package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dukex/lakeflow/pkg/jsonpath"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/sethvargo/go-retry"
)

func (e *Engine) runTask(ctx context.Context, info StepInfo, st *models.State, input any, cobj contextObject) (any, error) {
	task, err := e.tasks.Task(st.Resource)
	if err != nil {
		return nil, &NonRetryableTaskError{State: info.State, Kind: models.ErrorKindDomainInvalid, Err: err}
	}

	params := input
	if st.Parameters != nil {
		params, err = jsonpath.Resolve(st.Parameters, input, cobj.value())
		if err != nil {
			return nil, &RuntimeError{State: info.State, Err: fmt.Errorf("parameters: %w", err)}
		}
	}

	params, err = jsonpath.Normalize(params)
	if err != nil {
		return nil, &RuntimeError{State: info.State, Err: err}
	}

	return e.invokeWithRetry(ctx, info, st, task, params)
}

// invokeWithRetry owns the retry state of one task invocation. The backoff is
// created here and dropped on return, so concurrent forks visiting the same
// state never share attempt counters.
func (e *Engine) invokeWithRetry(ctx context.Context, info StepInfo, st *models.State, task protocol.Task, params any) (any, error) {
	var (
		attempts int
		last     *protocol.TaskError
	)

	backoff := newPolicyBackoff(st.Retry, e.timeUnit, func(kind models.ErrorKind, delay time.Duration) {
		e.observer.TaskRetrying(ctx, info, &RetryableTaskError{
			State:   info.State,
			Kind:    kind,
			Attempt: attempts,
			Err:     last,
		}, delay)
	})

	output, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (any, error) {
		attempts++

		result, err := e.invokeOnce(ctx, st, task, params)
		if err == nil {
			return result, nil
		}

		last = protocol.Classify(err)

		if ctx.Err() != nil || !backoff.retries(last.Kind) {
			return nil, last
		}

		backoff.arm(last.Kind)

		return nil, retry.RetryableError(last)
	})
	if err == nil {
		return output, nil
	}

	switch {
	case ctx.Err() != nil:
		return nil, err
	case last == nil:
		return nil, &RuntimeError{State: info.State, Err: err}
	case backoff.retries(last.Kind):
		return nil, &ExhaustedRetriesError{State: info.State, Kind: last.Kind, Attempts: attempts, Err: last}
	default:
		return nil, &NonRetryableTaskError{State: info.State, Kind: last.Kind, Err: last}
	}
}

func (e *Engine) invokeOnce(ctx context.Context, st *models.State, task protocol.Task, params any) (any, error) {
	if st.TimeoutSeconds <= 0 {
		return task.Invoke(ctx, params)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(st.TimeoutSeconds)*e.timeUnit)
	defer cancel()

	result, err := task.Invoke(callCtx, params)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, protocol.ClientTimeout(err)
	}

	return result, err
}

// policyBackoff selects the retry policy matching the last failure kind.
// Each policy keeps its own attempt budget, as the engine allows a task to
// retry different failure kinds under different policies.
type policyBackoff struct {
	mu       sync.Mutex
	policies []models.RetryPolicy
	backoffs []retry.Backoff
	pending  models.ErrorKind
	onDelay  func(kind models.ErrorKind, delay time.Duration)
}

func newPolicyBackoff(policies []models.RetryPolicy, unit time.Duration, onDelay func(models.ErrorKind, time.Duration)) *policyBackoff {
	b := &policyBackoff{
		policies: policies,
		backoffs: make([]retry.Backoff, len(policies)),
		onDelay:  onDelay,
	}

	for i, policy := range policies {
		retries := policy.MaxAttempts - 1
		if retries < 0 {
			retries = 0
		}

		attempt := 0
		b.backoffs[i] = retry.WithMaxRetries(uint64(retries), retry.BackoffFunc(func() (time.Duration, bool) {
			attempt++

			return policy.Delay(attempt, unit), false
		}))
	}

	return b
}

func (b *policyBackoff) policyFor(kind models.ErrorKind) int {
	for i, policy := range b.policies {
		if policy.Matches(kind) {
			return i
		}
	}

	return -1
}

func (b *policyBackoff) retries(kind models.ErrorKind) bool {
	return b.policyFor(kind) >= 0
}

func (b *policyBackoff) arm(kind models.ErrorKind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = kind
}

func (b *policyBackoff) Next() (time.Duration, bool) {
	b.mu.Lock()
	kind := b.pending
	b.mu.Unlock()

	i := b.policyFor(kind)
	if i < 0 {
		return 0, true
	}

	delay, stop := b.backoffs[i].Next()
	if !stop && b.onDelay != nil {
		b.onDelay(kind, delay)
	}

	return delay, stop
}
