package engine

import (
	"context"
	"fmt"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/qmuntal/stateless"
)

type lifecycleTrigger string

const (
	triggerStart   lifecycleTrigger = "start"
	triggerSucceed lifecycleTrigger = "succeed"
	triggerFail    lifecycleTrigger = "fail"
	triggerTimeout lifecycleTrigger = "timeout"
)

// Lifecycle guards the status transitions of a run:
// pending -> running -> succeeded | failed | timed_out. Terminal states accept
// no further transition.
type Lifecycle struct {
	sm *stateless.StateMachine
}

func NewLifecycle(initial models.RunStatus) *Lifecycle {
	sm := stateless.NewStateMachine(initial)

	sm.Configure(models.RunStatusPending).
		Permit(triggerStart, models.RunStatusRunning).
		Permit(triggerFail, models.RunStatusFailed)

	sm.Configure(models.RunStatusRunning).
		Permit(triggerSucceed, models.RunStatusSucceeded).
		Permit(triggerFail, models.RunStatusFailed).
		Permit(triggerTimeout, models.RunStatusTimedOut)

	sm.Configure(models.RunStatusSucceeded)
	sm.Configure(models.RunStatusFailed)
	sm.Configure(models.RunStatusTimedOut)

	return &Lifecycle{sm: sm}
}

func (l *Lifecycle) Status() models.RunStatus {
	status, _ := l.sm.MustState().(models.RunStatus)

	return status
}

func (l *Lifecycle) Start(ctx context.Context) error {
	return l.fire(ctx, triggerStart)
}

// Finish moves a running run to the given terminal status.
func (l *Lifecycle) Finish(ctx context.Context, status models.RunStatus) error {
	switch status {
	case models.RunStatusSucceeded:
		return l.fire(ctx, triggerSucceed)
	case models.RunStatusFailed:
		return l.fire(ctx, triggerFail)
	case models.RunStatusTimedOut:
		return l.fire(ctx, triggerTimeout)
	default:
		return fmt.Errorf("run status %q is not terminal", status)
	}
}

func (l *Lifecycle) fire(ctx context.Context, trigger lifecycleTrigger) error {
	err := l.sm.FireCtx(ctx, trigger)
	if err != nil {
		return fmt.Errorf("run is %s: %w", l.Status(), err)
	}

	return nil
}
