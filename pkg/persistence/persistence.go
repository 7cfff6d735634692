// Package persistence provides the storage abstraction for runs and their status reports.
package persistence

import (
	"context"

	"github.com/dukex/lakeflow/pkg/models"
)

type Persistence interface {
	// SaveRun inserts run or replaces the stored run with the same ID.
	SaveRun(ctx context.Context, run *models.Run) error
	RunByID(ctx context.Context, id string) (*models.Run, error)
	// Runs returns every run, newest first.
	Runs(ctx context.Context) ([]*models.Run, error)

	SaveStatusReport(ctx context.Context, report *models.StatusReport) error
	// StatusReports returns the reports of one execution in reporting order.
	StatusReports(ctx context.Context, executionName string) ([]*models.StatusReport, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
