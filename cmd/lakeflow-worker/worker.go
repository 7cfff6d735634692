package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/lakeflow/pkg/eventbus"
	"github.com/dukex/lakeflow/pkg/events"
	"github.com/dukex/lakeflow/pkg/services"
)

// Worker executes the runs requested on the event bus.
type Worker struct {
	id         string
	logger     *slog.Logger
	runService *services.Run
	eventBus   eventbus.EventBus
}

func NewWorker(
	id string,
	runService *services.Run,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:         id,
		logger:     logger.With("module", "lakeflow-worker", "worker_id", id),
		runService: runService,
		eventBus:   eventBus,
	}
}

// Listen registers the run handler and subscribes to the event bus.
func (w *Worker) Listen(ctx context.Context) error {
	err := w.eventBus.Handle(events.RunRequestedEvent, w.runService.HandleRunRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	return nil
}

// Start listens until SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.Listen(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}
