package file

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
)

func (fp *Persistence) reportsDir(executionName string) string {
	return filepath.Join(fp.root, "status_reports", executionName)
}

func (fp *Persistence) SaveStatusReport(_ context.Context, report *models.StatusReport) error {
	if report == nil || report.ID == "" || report.ExecutionName == "" {
		return persistence.ErrInvalidStatusReport
	}

	if checkName(report.ID) != nil || checkName(report.ExecutionName) != nil {
		return persistence.ErrInvalidStatusReport
	}

	err := writeJSON(filepath.Join(fp.reportsDir(report.ExecutionName), report.ID+".json"), report)
	if err != nil {
		return fmt.Errorf("failed to save status report: %w", err)
	}

	return nil
}

// StatusReports returns the reports of one execution in reporting order.
func (fp *Persistence) StatusReports(_ context.Context, executionName string) ([]*models.StatusReport, error) {
	reports := []*models.StatusReport{}

	if checkName(executionName) != nil {
		return reports, nil
	}

	err := readDir(fp.reportsDir(executionName), func(data []byte) error {
		var report models.StatusReport

		err := json.Unmarshal(data, &report)
		if err != nil {
			return err
		}

		reports = append(reports, &report)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list status reports: %w", err)
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].ReportedAt.Equal(reports[j].ReportedAt) {
			return reports[i].ID < reports[j].ID
		}

		return reports[i].ReportedAt.Before(reports[j].ReportedAt)
	})

	return reports, nil
}
