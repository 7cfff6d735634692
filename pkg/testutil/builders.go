// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestRun creates a pending Run with default values that can be overridden.
func CreateTestRun(overrides ...func(*models.Run)) *models.Run {
	run := &models.Run{
		ID:        uuid.NewString(),
		Status:    models.RunStatusPending,
		Trigger:   "test",
		Input:     map[string]any{"source": "test"},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	run.ExecutionName = run.ID

	for _, override := range overrides {
		override(run)
	}

	return run
}

// WithRunCreatedAt sets the creation time of the run.
func WithRunCreatedAt(at time.Time) func(*models.Run) {
	return func(r *models.Run) {
		r.CreatedAt = at.UTC().Truncate(time.Microsecond)
	}
}

// WithRunFinished marks the run as finished with status.
func WithRunFinished(status models.RunStatus, output any, err string) func(*models.Run) {
	return func(r *models.Run) {
		started := r.CreatedAt.Add(time.Second)
		finished := started.Add(time.Minute)

		r.Status = status
		r.StartedAt = &started
		r.FinishedAt = &finished
		r.Output = output
		r.Error = err
	}
}

// CreateTestStatusReport creates a status report of execution with default
// values that can be overridden.
func CreateTestStatusReport(execution string, stage models.ImportStage, overrides ...func(*models.StatusReport)) *models.StatusReport {
	report := &models.StatusReport{
		ID:            uuid.NewString(),
		ExecutionName: execution,
		Stage:         stage,
		Entity:        "Account",
		FlowName:      "salesforce-Account",
		ReportedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	for _, override := range overrides {
		override(report)
	}

	return report
}

// WithReportedAt sets the reporting time.
func WithReportedAt(at time.Time) func(*models.StatusReport) {
	return func(r *models.StatusReport) {
		r.ReportedAt = at.UTC().Truncate(time.Microsecond)
	}
}
