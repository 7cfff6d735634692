// Package memory keeps runs and status reports in an in-memory database.
// Nothing survives the process; it backs tests and one-shot CLI runs.
package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
	memdb "github.com/hashicorp/go-memdb"
)

const (
	runsTable          = "runs"
	statusReportsTable = "status_reports"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			runsTable: {
				Name: runsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			statusReportsTable: {
				Name: statusReportsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"execution": {
						Name:    "execution",
						Indexer: &memdb.StringFieldIndex{Field: "ExecutionName"},
					},
				},
			},
		},
	}
}

// Persistence implements persistence.Persistence on go-memdb. Records are
// copied on the way in and out so callers never share memory with the store.
type Persistence struct {
	db *memdb.MemDB
}

func NewPersistence() (*Persistence, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}

	return &Persistence{db: db}, nil
}

func (p *Persistence) HealthCheck(context.Context) error {
	return nil
}

func (p *Persistence) Close(context.Context) error {
	return nil
}

func (p *Persistence) SaveRun(_ context.Context, run *models.Run) error {
	if run == nil || run.ID == "" {
		return persistence.ErrInvalidRun
	}

	txn := p.db.Txn(true)
	defer txn.Abort()

	err := txn.Insert(runsTable, copyRun(run))
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	txn.Commit()

	return nil
}

func (p *Persistence) RunByID(_ context.Context, id string) (*models.Run, error) {
	txn := p.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(runsTable, "id", id)
	if err != nil {
		return nil, persistence.NewRunError("RunByID", id, err)
	}

	if raw == nil {
		return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
	}

	return copyRun(raw.(*models.Run)), nil
}

func (p *Persistence) Runs(context.Context) ([]*models.Run, error) {
	txn := p.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(runsTable, "id")
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := []*models.Run{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		runs = append(runs, copyRun(raw.(*models.Run)))
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}

		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}

func (p *Persistence) SaveStatusReport(_ context.Context, report *models.StatusReport) error {
	if report == nil || report.ID == "" || report.ExecutionName == "" {
		return persistence.ErrInvalidStatusReport
	}

	txn := p.db.Txn(true)
	defer txn.Abort()

	err := txn.Insert(statusReportsTable, copyReport(report))
	if err != nil {
		return fmt.Errorf("failed to save status report: %w", err)
	}

	txn.Commit()

	return nil
}

func (p *Persistence) StatusReports(_ context.Context, executionName string) ([]*models.StatusReport, error) {
	txn := p.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(statusReportsTable, "execution", executionName)
	if err != nil {
		return nil, fmt.Errorf("failed to list status reports: %w", err)
	}

	reports := []*models.StatusReport{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		reports = append(reports, copyReport(raw.(*models.StatusReport)))
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].ReportedAt.Equal(reports[j].ReportedAt) {
			return reports[i].ID < reports[j].ID
		}

		return reports[i].ReportedAt.Before(reports[j].ReportedAt)
	})

	return reports, nil
}
