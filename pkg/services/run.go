package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/lakeflow/pkg/engine"
	"github.com/dukex/lakeflow/pkg/eventbus"
	"github.com/dukex/lakeflow/pkg/events"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RunRequest asks for one run of the import workflow.
type RunRequest struct {
	Trigger string         `json:"trigger" validate:"required,max=255"`
	Input   map[string]any `json:"input"`
}

// Run records, executes and reads back runs of one workflow definition.
type Run struct {
	persistence   persistence.Persistence
	publisher     eventbus.EventPublisher
	tasks         engine.TaskResolver
	definition    *models.Definition
	logger        *slog.Logger
	validate      *validator.Validate
	engineOptions []engine.Option
	workerID      string
	now           func() time.Time
}

type RunOption func(*Run)

// WithEngineOptions passes opts to the engine of every executed run.
func WithEngineOptions(opts ...engine.Option) RunOption {
	return func(r *Run) {
		r.engineOptions = append(r.engineOptions, opts...)
	}
}

// WithWorkerID tags the lifecycle events of executed runs.
func WithWorkerID(id string) RunOption {
	return func(r *Run) {
		r.workerID = id
	}
}

// NewRun creates a new run service. publisher may be nil, in which case no
// events are published.
func NewRun(
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	tasks engine.TaskResolver,
	definition *models.Definition,
	logger *slog.Logger,
	opts ...RunOption,
) *Run {
	r := &Run{
		persistence: persistence,
		publisher:   publisher,
		tasks:       tasks,
		definition:  definition,
		logger:      logger.With("module", "run_service"),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Definition is the workflow every run executes.
func (r *Run) Definition() *models.Definition {
	return r.definition
}

// HealthCheck checks the health of the persistence layer.
func (r *Run) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := r.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Run) newRun(req RunRequest) (*models.Run, error) {
	err := r.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("RequestRun", "invalid_run_request", err.Error(), errors.Join(ErrInvalidRequest, err))
	}

	id := uuid.NewString()

	return &models.Run{
		ID:            id,
		ExecutionName: id,
		Status:        models.RunStatusPending,
		Trigger:       req.Trigger,
		Input:         req.Input,
		CreatedAt:     r.now().UTC(),
	}, nil
}

// Request records a pending run and publishes RunRequested for a worker to
// pick it up.
func (r *Run) Request(ctx context.Context, req RunRequest) (*models.Run, error) {
	run, err := r.newRun(req)
	if err != nil {
		return nil, err
	}

	err = r.persistence.SaveRun(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	if r.publisher != nil {
		event := events.RunRequested{
			BaseEvent: events.NewBaseEvent(events.RunRequestedEvent, run.ID),
			Trigger:   run.Trigger,
			Input:     run.Input,
		}

		err = r.publisher.Publish(ctx, run.ID, event)
		if err != nil {
			return run, fmt.Errorf("failed to publish run request: %w", err)
		}
	}

	r.logger.InfoContext(ctx, "Run requested", "run_id", run.ID, "trigger", run.Trigger)

	return run, nil
}

// Start records a run and executes it in the calling goroutine.
func (r *Run) Start(ctx context.Context, req RunRequest) (*models.Run, error) {
	run, err := r.newRun(req)
	if err != nil {
		return nil, err
	}

	err = r.persistence.SaveRun(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	return r.execute(ctx, run)
}

// Execute runs the pending run id to completion and stores its outcome.
// Runs that already left pending are rejected with ErrRunNotPending, so a
// redelivered request never executes a run twice.
func (r *Run) Execute(ctx context.Context, id string) (*models.Run, error) {
	run, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return r.execute(ctx, run)
}

func (r *Run) execute(ctx context.Context, run *models.Run) (*models.Run, error) {
	lifecycle := engine.NewLifecycle(run.Status)

	err := lifecycle.Start(ctx)
	if err != nil {
		return run, &ServiceError{Op: "ExecuteRun", Code: "run_not_pending", Err: errors.Join(ErrRunNotPending, err)}
	}

	startedAt := r.now().UTC()
	run.Status = lifecycle.Status()
	run.StartedAt = &startedAt

	err = r.persistence.SaveRun(ctx, run)
	if err != nil {
		return run, fmt.Errorf("failed to mark run as running: %w", err)
	}

	opts := append([]engine.Option{engine.WithLogger(r.logger)}, r.engineOptions...)
	if r.publisher != nil {
		opts = append(opts, engine.WithObserver(&engine.EventObserver{
			Publisher: r.publisher,
			RunID:     run.ID,
			WorkerID:  r.workerID,
			Logger:    r.logger,
		}))
	}

	var input any
	if run.Input != nil {
		input = run.Input
	}

	outcome := engine.New(r.tasks, opts...).RunNamed(ctx, run.ExecutionName, r.definition, input)

	finishedAt := r.now().UTC()
	run.Status = outcome.Status
	run.Output = outcome.Output
	run.FinishedAt = &finishedAt

	if outcome.Err != nil {
		run.Error = outcome.Err.Error()
		run.ErrorKind = engine.ErrorKind(outcome.Err)
	}

	// The outcome is stored even when the caller gave up waiting.
	err = r.persistence.SaveRun(context.WithoutCancel(ctx), run)
	if err != nil {
		return run, fmt.Errorf("failed to save run outcome: %w", err)
	}

	return run, nil
}

// Get retrieves a run by its ID.
func (r *Run) Get(ctx context.Context, id string) (*models.Run, error) {
	if id == "" {
		return nil, ErrEmptyRunID
	}

	run, err := r.persistence.RunByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// List returns every run, newest first.
func (r *Run) List(ctx context.Context) ([]*models.Run, error) {
	runs, err := r.persistence.Runs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// StatusReports returns the per entity progress reports of run id.
func (r *Run) StatusReports(ctx context.Context, id string) ([]*models.StatusReport, error) {
	run, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reports, err := r.persistence.StatusReports(ctx, run.ExecutionName)
	if err != nil {
		return nil, fmt.Errorf("failed to list status reports: %w", err)
	}

	return reports, nil
}

// HandleRunRequested is the event bus handler of the worker: it executes the
// requested run. Requests for runs that are gone or already handled are
// acknowledged and dropped.
func (r *Run) HandleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RunRequested)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	run, err := r.Execute(ctx, requested.RunID)

	switch {
	case persistence.IsRunNotFound(err):
		r.logger.WarnContext(ctx, "Requested run not found", "run_id", requested.RunID)

		return nil
	case errors.Is(err, ErrRunNotPending):
		r.logger.InfoContext(ctx, "Run already handled", "run_id", requested.RunID, "status", run.Status)

		return nil
	case err != nil:
		return err
	}

	r.logger.InfoContext(ctx, "Run finished", "run_id", run.ID, "status", run.Status)

	return nil
}
