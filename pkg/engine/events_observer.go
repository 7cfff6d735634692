package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/lakeflow/pkg/eventbus"
	"github.com/dukex/lakeflow/pkg/events"
	"github.com/dukex/lakeflow/pkg/models"
)

// EventObserver publishes run lifecycle and retry events for one run.
// Publishing failures are logged and never fail the run.
type EventObserver struct {
	NoopObserver

	Publisher eventbus.EventPublisher
	RunID     string
	WorkerID  string
	Logger    *slog.Logger
}

func (o *EventObserver) RunStarted(ctx context.Context, execution string) {
	o.publish(ctx, events.RunStarted{
		BaseEvent:     o.base(events.RunStartedEvent),
		ExecutionName: execution,
	})
}

func (o *EventObserver) RunFinished(ctx context.Context, outcome *Outcome) {
	duration := outcome.FinishedAt.Sub(outcome.StartedAt)

	switch outcome.Status {
	case models.RunStatusSucceeded:
		o.publish(ctx, events.RunSucceeded{
			BaseEvent:     o.base(events.RunSucceededEvent),
			ExecutionName: outcome.ExecutionName,
			Output:        outcome.Output,
			Duration:      duration,
		})
	case models.RunStatusTimedOut:
		event := events.RunTimedOut{
			BaseEvent:     o.base(events.RunTimedOutEvent),
			ExecutionName: outcome.ExecutionName,
			Duration:      duration,
		}

		var timeoutErr *WorkflowTimeoutError
		if errors.As(outcome.Err, &timeoutErr) {
			event.Timeout = timeoutErr.Timeout
		}

		o.publish(ctx, event)
	default:
		event := events.RunFailed{
			BaseEvent:     o.base(events.RunFailedEvent),
			ExecutionName: outcome.ExecutionName,
			ErrorKind:     ErrorKind(outcome.Err),
			Duration:      duration,
		}

		if outcome.Err != nil {
			event.Error = outcome.Err.Error()
		}

		o.publish(ctx, event)
	}
}

func (o *EventObserver) TaskRetrying(ctx context.Context, step StepInfo, failure *RetryableTaskError, delay time.Duration) {
	o.publish(ctx, events.TaskRetrying{
		BaseEvent:     o.base(events.TaskRetryingEvent),
		ExecutionName: step.Execution,
		State:         step.State,
		Resource:      step.Resource,
		ItemIndex:     step.ItemIndex,
		Attempt:       failure.Attempt,
		ErrorKind:     string(failure.Kind),
		Delay:         delay,
	})
}

func (o *EventObserver) base(eventType events.EventType) events.BaseEvent {
	base := events.NewBaseEvent(eventType, o.RunID)
	base.WorkerID = o.WorkerID

	return base
}

func (o *EventObserver) publish(ctx context.Context, event eventbus.Event) {
	// Lifecycle events must go out even after the run context was cancelled.
	err := o.Publisher.Publish(context.WithoutCancel(ctx), o.RunID, event)
	if err != nil && o.Logger != nil {
		o.Logger.ErrorContext(ctx, "Failed to publish run event", "run_id", o.RunID, "event_type", event.GetType(), "error", err)
	}
}
