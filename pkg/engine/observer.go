package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
)

// StepInfo identifies one visit of a state.
type StepInfo struct {
	Execution string
	State     string
	Type      models.StateType
	Resource  string
	// ItemIndex is the index of the enclosing Map item, or -1.
	ItemIndex int
}

// Observer receives engine lifecycle notifications. Calls may arrive
// concurrently from Map forks and Parallel branches.
type Observer interface {
	RunStarted(ctx context.Context, execution string)
	RunFinished(ctx context.Context, outcome *Outcome)
	StepStarted(ctx context.Context, step StepInfo)
	StepFinished(ctx context.Context, step StepInfo, err error)
	TaskRetrying(ctx context.Context, step StepInfo, failure *RetryableTaskError, delay time.Duration)
}

// NoopObserver ignores every notification. Embed it to implement a subset.
type NoopObserver struct{}

func (NoopObserver) RunStarted(context.Context, string)                                       {}
func (NoopObserver) RunFinished(context.Context, *Outcome)                                    {}
func (NoopObserver) StepStarted(context.Context, StepInfo)                                    {}
func (NoopObserver) StepFinished(context.Context, StepInfo, error)                            {}
func (NoopObserver) TaskRetrying(context.Context, StepInfo, *RetryableTaskError, time.Duration) {}

// CompositeObserver fans notifications out in order.
type CompositeObserver []Observer

func (c CompositeObserver) RunStarted(ctx context.Context, execution string) {
	for _, o := range c {
		o.RunStarted(ctx, execution)
	}
}

func (c CompositeObserver) RunFinished(ctx context.Context, outcome *Outcome) {
	for _, o := range c {
		o.RunFinished(ctx, outcome)
	}
}

func (c CompositeObserver) StepStarted(ctx context.Context, step StepInfo) {
	for _, o := range c {
		o.StepStarted(ctx, step)
	}
}

func (c CompositeObserver) StepFinished(ctx context.Context, step StepInfo, err error) {
	for _, o := range c {
		o.StepFinished(ctx, step, err)
	}
}

func (c CompositeObserver) TaskRetrying(ctx context.Context, step StepInfo, failure *RetryableTaskError, delay time.Duration) {
	for _, o := range c {
		o.TaskRetrying(ctx, step, failure, delay)
	}
}

// LoggingObserver writes engine activity to a structured logger.
type LoggingObserver struct {
	Logger *slog.Logger
}

func (o LoggingObserver) RunStarted(ctx context.Context, execution string) {
	o.Logger.InfoContext(ctx, "Run started", "execution", execution)
}

func (o LoggingObserver) RunFinished(ctx context.Context, outcome *Outcome) {
	attrs := []any{
		"execution", outcome.ExecutionName,
		"status", outcome.Status,
		"duration", outcome.FinishedAt.Sub(outcome.StartedAt),
	}

	if outcome.Err != nil {
		o.Logger.ErrorContext(ctx, "Run finished", append(attrs, "error", outcome.Err, "error_kind", ErrorKind(outcome.Err))...)

		return
	}

	o.Logger.InfoContext(ctx, "Run finished", attrs...)
}

func (o LoggingObserver) StepStarted(ctx context.Context, step StepInfo) {
	o.Logger.DebugContext(ctx, "Step started", stepAttrs(step)...)
}

func (o LoggingObserver) StepFinished(ctx context.Context, step StepInfo, err error) {
	if err != nil {
		o.Logger.ErrorContext(ctx, "Step failed", append(stepAttrs(step), "error", err)...)

		return
	}

	o.Logger.DebugContext(ctx, "Step finished", stepAttrs(step)...)
}

func (o LoggingObserver) TaskRetrying(ctx context.Context, step StepInfo, failure *RetryableTaskError, delay time.Duration) {
	o.Logger.WarnContext(ctx, "Retrying task",
		append(stepAttrs(step), "attempt", failure.Attempt, "error_kind", failure.Kind, "delay", delay, "error", failure.Err)...)
}

func stepAttrs(step StepInfo) []any {
	attrs := []any{"execution", step.Execution, "state", step.State, "type", step.Type}
	if step.Resource != "" {
		attrs = append(attrs, "resource", step.Resource)
	}

	if step.ItemIndex >= 0 {
		attrs = append(attrs, "item", step.ItemIndex)
	}

	return attrs
}
