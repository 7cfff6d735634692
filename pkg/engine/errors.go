package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
)

var (
	ErrWorkflowTimeout = errors.New("workflow timed out")
	ErrNoChoiceMatched = errors.New("no choice rule matched and no default")
	ErrNotASequence    = errors.New("items path does not select a sequence")
)

// ErrorKindTimeout is recorded on runs that end in WorkflowTimeoutError.
const ErrorKindTimeout = "workflow-timeout"

// RetryableTaskError describes a failed attempt that will be retried. It is
// handed to observers only; the engine never returns it.
type RetryableTaskError struct {
	State   string
	Kind    models.ErrorKind
	Attempt int
	Err     error
}

func (e *RetryableTaskError) Error() string {
	return fmt.Sprintf("state %s: attempt %d failed with %s: %v", e.State, e.Attempt, e.Kind, e.Err)
}

func (e *RetryableTaskError) Unwrap() error {
	return e.Err
}

// ExhaustedRetriesError is returned when a retryable failure persisted for
// every attempt a policy allows.
type ExhaustedRetriesError struct {
	State    string
	Kind     models.ErrorKind
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("state %s: retries exhausted after %d attempts (%s): %v", e.State, e.Attempts, e.Kind, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Err
}

// NonRetryableTaskError is returned when no policy of the task retries the
// failure kind.
type NonRetryableTaskError struct {
	State string
	Kind  models.ErrorKind
	Err   error
}

func (e *NonRetryableTaskError) Error() string {
	return fmt.Sprintf("state %s: %s: %v", e.State, e.Kind, e.Err)
}

func (e *NonRetryableTaskError) Unwrap() error {
	return e.Err
}

// RuntimeError is a failure of the engine itself while running a state, such
// as a path that does not resolve. It is never retried.
type RuntimeError struct {
	State string
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

type MapForkFailure struct {
	State string
	Index int
	Err   error
}

func (e *MapForkFailure) Error() string {
	return fmt.Sprintf("map %s: item %d failed: %v", e.State, e.Index, e.Err)
}

func (e *MapForkFailure) Unwrap() error {
	return e.Err
}

type ParallelBranchFailure struct {
	State  string
	Branch int
	Err    error
}

func (e *ParallelBranchFailure) Error() string {
	return fmt.Sprintf("parallel %s: branch %d failed: %v", e.State, e.Branch, e.Err)
}

func (e *ParallelBranchFailure) Unwrap() error {
	return e.Err
}

// FailStateError is returned when a run reaches a Fail state.
type FailStateError struct {
	State string
	Code  string
	Cause string
}

func (e *FailStateError) Error() string {
	return fmt.Sprintf("state %s failed: %s: %s", e.State, e.Code, e.Cause)
}

// WorkflowTimeoutError ends a run that exceeded its whole-run timeout. Err is
// whatever the interrupted step reported, kept for diagnosis.
type WorkflowTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *WorkflowTimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrWorkflowTimeout, e.Timeout)
}

func (e *WorkflowTimeoutError) Unwrap() error {
	return e.Err
}

func (e *WorkflowTimeoutError) Is(target error) bool {
	return target == ErrWorkflowTimeout
}

// ErrorKind returns the classification of a run failure: the task error kind
// when one is reachable, ErrorKindTimeout for timeouts and domain-invalid for
// engine failures.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrWorkflowTimeout) {
		return ErrorKindTimeout
	}

	var exhausted *ExhaustedRetriesError
	if errors.As(err, &exhausted) {
		return string(exhausted.Kind)
	}

	var nonRetryable *NonRetryableTaskError
	if errors.As(err, &nonRetryable) {
		return string(nonRetryable.Kind)
	}

	var failState *FailStateError
	if errors.As(err, &failState) {
		return failState.Code
	}

	var taskErr *protocol.TaskError
	if errors.As(err, &taskErr) {
		return string(taskErr.Kind)
	}

	return string(models.ErrorKindDomainInvalid)
}
