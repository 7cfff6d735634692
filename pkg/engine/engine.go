// Package engine runs workflow definitions: it walks the state graph, invokes
// tasks with their retry policies, fans out Map and Parallel states and
// enforces the whole-run timeout.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/lakeflow/pkg/jsonpath"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/otelhelper"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dukex/lakeflow/pkg/engine"

// TaskResolver resolves a Task state's resource name.
type TaskResolver interface {
	Task(id string) (protocol.Task, error)
}

type Engine struct {
	tasks    TaskResolver
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
	timeUnit time.Duration
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver adds observers; they are called after the logging observer.
func WithObserver(observers ...Observer) Option {
	return func(e *Engine) {
		composite, ok := e.observer.(CompositeObserver)
		if !ok {
			composite = CompositeObserver{e.observer}
		}

		e.observer = append(composite, observers...)
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithTimeUnit sets the duration of one "second" in wait states, retry
// intervals and definition timeouts.
func WithTimeUnit(unit time.Duration) Option {
	return func(e *Engine) {
		e.timeUnit = unit
	}
}

// WithTimeout overrides the definition's whole-run timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

func New(tasks TaskResolver, opts ...Option) *Engine {
	e := &Engine{
		tasks:    tasks,
		logger:   slog.Default().With("module", "engine"),
		tracer:   otel.Tracer(tracerName),
		timeUnit: time.Second,
		now:      time.Now,
	}
	e.observer = NoopObserver{}

	for _, opt := range opts {
		opt(e)
	}

	e.observer = append(CompositeObserver{LoggingObserver{Logger: e.logger}}, e.observer)

	return e
}

// Outcome is the terminal result of one run.
type Outcome struct {
	ExecutionName string
	Status        models.RunStatus
	Output        any
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time
}

func (o *Outcome) Succeeded() bool {
	return o.Status == models.RunStatusSucceeded
}

// Run executes definition with input under a fresh execution name.
func (e *Engine) Run(ctx context.Context, definition *models.Definition, input any) *Outcome {
	return e.RunNamed(ctx, uuid.NewString(), definition, input)
}

// RunNamed executes definition under the given execution name. The run ends
// Succeeded, Failed on the first unretried error, or TimedOut when the
// whole-run timeout elapses first.
func (e *Engine) RunNamed(ctx context.Context, name string, definition *models.Definition, input any) *Outcome {
	outcome := &Outcome{
		ExecutionName: name,
		StartedAt:     e.now(),
	}

	lifecycle := NewLifecycle(models.RunStatusPending)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "run "+name,
		attribute.String(otelhelper.ExecutionNameKey, name),
	)
	defer span.End()

	finish := func(output any, err error, status models.RunStatus) *Outcome {
		if lifecycleErr := lifecycle.Finish(ctx, status); lifecycleErr != nil {
			e.logger.ErrorContext(ctx, "Invalid run transition", "execution", name, "error", lifecycleErr)
		}

		outcome.Status = lifecycle.Status()
		outcome.Output = output
		outcome.Err = err
		outcome.FinishedAt = e.now()

		if err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.ErrorKindKey, ErrorKind(err)))
		}

		e.observer.RunFinished(ctx, outcome)

		return outcome
	}

	_ = lifecycle.Start(ctx)
	e.observer.RunStarted(ctx, name)

	err := definition.Validate()
	if err != nil {
		return finish(nil, err, models.RunStatusFailed)
	}

	state, err := jsonpath.Normalize(input)
	if err != nil {
		return finish(nil, &RuntimeError{State: definition.StartAt, Err: err}, models.RunStatusFailed)
	}

	if state == nil {
		state = map[string]any{}
	}

	timeout := e.timeout
	if timeout == 0 && definition.TimeoutSeconds > 0 {
		timeout = time.Duration(definition.TimeoutSeconds) * e.timeUnit
	}

	runCtx := ctx

	if timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeoutCause(ctx, timeout, ErrWorkflowTimeout)
		defer cancel()
	}

	output, err := e.runDefinition(runCtx, definition, state, newContextObject(name, outcome.StartedAt))

	switch {
	case err == nil:
		return finish(output, nil, models.RunStatusSucceeded)
	case errors.Is(context.Cause(runCtx), ErrWorkflowTimeout):
		return finish(nil, &WorkflowTimeoutError{Timeout: timeout, Err: err}, models.RunStatusTimedOut)
	default:
		return finish(nil, err, models.RunStatusFailed)
	}
}

// stepResult is the outcome of one state: continue at Next with Output, or
// end the enclosing definition with Output when Next is empty.
type stepResult struct {
	Next   string
	Output any
}

func (r stepResult) terminal() bool {
	return r.Next == ""
}

func (e *Engine) runDefinition(ctx context.Context, definition *models.Definition, input any, cobj contextObject) (any, error) {
	current := definition.StartAt
	state := input

	for {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		st, ok := definition.States[current]
		if !ok {
			return nil, &RuntimeError{State: current, Err: fmt.Errorf("state %q not defined", current)}
		}

		result, err := e.runState(ctx, current, st, state, cobj)
		if err != nil {
			return nil, err
		}

		if result.terminal() {
			return result.Output, nil
		}

		current, state = result.Next, result.Output
	}
}

func (e *Engine) runState(ctx context.Context, name string, st *models.State, input any, cobj contextObject) (stepResult, error) {
	info := StepInfo{
		Execution: cobj.executionName(),
		State:     name,
		Type:      st.Type,
		Resource:  st.Resource,
		ItemIndex: cobj.itemIndex,
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "state "+name,
		attribute.String(otelhelper.ExecutionNameKey, info.Execution),
		attribute.String(otelhelper.StateNameKey, name),
		attribute.String(otelhelper.StateTypeKey, string(st.Type)),
		attribute.Int(otelhelper.ItemIndexKey, info.ItemIndex),
	)
	defer span.End()

	e.observer.StepStarted(ctx, info)

	result, err := e.dispatch(ctx, info, st, input, cobj.enterState(name, e.now()))
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.ErrorKindKey, ErrorKind(err)))
	}

	e.observer.StepFinished(ctx, info, err)

	return result, err
}

func (e *Engine) dispatch(ctx context.Context, info StepInfo, st *models.State, input any, cobj contextObject) (stepResult, error) {
	effective, err := jsonpath.Get(input, st.InputPath)
	if err != nil {
		return stepResult{}, &RuntimeError{State: info.State, Err: err}
	}

	var result any

	switch st.Type {
	case models.StateTypeTask:
		result, err = e.runTask(ctx, info, st, effective, cobj)
	case models.StateTypeMap:
		result, err = e.runMap(ctx, info, st, effective, cobj)
	case models.StateTypeParallel:
		result, err = e.runParallel(ctx, info, st, effective, cobj)
	case models.StateTypePass:
		result, err = e.passResult(info, st, effective, cobj)
	case models.StateTypeWait:
		err = e.sleep(ctx, time.Duration(st.Seconds*float64(e.timeUnit)))
		if err != nil {
			return stepResult{}, err
		}

		return e.project(info, st, effective, st.Next)
	case models.StateTypeChoice:
		next, err := e.choose(info, st, effective)
		if err != nil {
			return stepResult{}, err
		}

		return e.project(info, st, effective, next)
	case models.StateTypeSucceed:
		return e.project(info, st, effective, "")
	case models.StateTypeFail:
		return stepResult{}, &FailStateError{State: info.State, Code: st.Error, Cause: st.Cause}
	default:
		return stepResult{}, &RuntimeError{State: info.State, Err: fmt.Errorf("unsupported state type %q", st.Type)}
	}

	if err != nil {
		return stepResult{}, err
	}

	output, err := e.applyResult(info, st, input, result, cobj)
	if err != nil {
		return stepResult{}, err
	}

	next := st.Next
	if st.End {
		next = ""
	}

	return stepResult{Next: next, Output: output}, nil
}

// project applies OutputPath to states that produce no result of their own.
func (e *Engine) project(info StepInfo, st *models.State, effective any, next string) (stepResult, error) {
	output, err := jsonpath.Get(effective, st.OutputPath)
	if err != nil {
		return stepResult{}, &RuntimeError{State: info.State, Err: err}
	}

	return stepResult{Next: next, Output: output}, nil
}

// applyResult threads a state result into the state input:
// ResultSelector, then ResultPath (or DiscardResult), then OutputPath.
func (e *Engine) applyResult(info StepInfo, st *models.State, input any, result any, cobj contextObject) (any, error) {
	fail := func(err error) (any, error) {
		return nil, &RuntimeError{State: info.State, Err: err}
	}

	result, err := jsonpath.Normalize(result)
	if err != nil {
		return fail(err)
	}

	if st.ResultSelector != nil {
		result, err = jsonpath.Resolve(st.ResultSelector, result, cobj.value())
		if err != nil {
			return fail(fmt.Errorf("result selector: %w", err))
		}
	}

	var combined any

	switch {
	case st.DiscardResult:
		combined = input
	case st.ResultPath == "":
		combined = jsonpath.Merge(input, result)
	default:
		combined, err = jsonpath.Set(input, st.ResultPath, result)
		if err != nil {
			return fail(fmt.Errorf("result path: %w", err))
		}
	}

	output, err := jsonpath.Get(combined, st.OutputPath)
	if err != nil {
		return fail(fmt.Errorf("output path: %w", err))
	}

	return output, nil
}

func (e *Engine) passResult(info StepInfo, st *models.State, effective any, cobj contextObject) (any, error) {
	switch {
	case st.Result != nil:
		return st.Result, nil
	case st.Parameters != nil:
		resolved, err := jsonpath.Resolve(st.Parameters, effective, cobj.value())
		if err != nil {
			return nil, &RuntimeError{State: info.State, Err: err}
		}

		return resolved, nil
	default:
		return effective, nil
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
