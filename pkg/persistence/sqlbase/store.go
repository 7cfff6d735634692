package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
)

// Store implements the run and status report queries shared by the SQL
// backends. Queries use "?" placeholders rebound for the dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func NewStore(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	return &Store{db: db, dialect: dialect, logger: logger}
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// marshalNullable encodes value as JSON text, or SQL NULL for nil values.
func marshalNullable(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	if string(data) == "null" {
		return nil, nil
	}

	return string(data), nil
}

// SaveRun upserts run.
func (s *Store) SaveRun(ctx context.Context, run *models.Run) error {
	if run == nil || run.ID == "" {
		return persistence.ErrInvalidRun
	}

	inputJSON, err := marshalNullable(run.Input)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to marshal input: %w", err))
	}

	outputJSON, err := marshalNullable(run.Output)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, fmt.Errorf("failed to marshal output: %w", err))
	}

	query := s.dialect.Rebind(`
		INSERT INTO runs (
			id, execution_name, status, trigger_source, input, output,
			error_message, error_kind, created_at, started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			execution_name = EXCLUDED.execution_name,
			status = EXCLUDED.status,
			trigger_source = EXCLUDED.trigger_source,
			input = EXCLUDED.input,
			output = EXCLUDED.output,
			error_message = EXCLUDED.error_message,
			error_kind = EXCLUDED.error_kind,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`)

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.ExecutionName,
		string(run.Status),
		run.Trigger,
		inputJSON,
		outputJSON,
		run.Error,
		run.ErrorKind,
		s.dialect.timeArg(run.CreatedAt),
		s.dialect.nullTimeArg(run.StartedAt),
		s.dialect.nullTimeArg(run.FinishedAt),
	)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	return nil
}

const runColumns = `id, execution_name, status, trigger_source, input, output,
	error_message, error_kind, created_at, started_at, finished_at`

// RunByID returns persistence.ErrRunNotFound, wrapped, for unknown ids.
func (s *Store) RunByID(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("RunByID", id, fmt.Errorf("failed to scan run: %w", err))
	}

	return run, nil
}

// Runs returns every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	runs := []*models.Run{}

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run                   models.Run
		status                string
		inputJSON, outputJSON []byte
		createdAt             nullTime
		startedAt, finishedAt nullTime
	)

	err := row.Scan(
		&run.ID,
		&run.ExecutionName,
		&status,
		&run.Trigger,
		&inputJSON,
		&outputJSON,
		&run.Error,
		&run.ErrorKind,
		&createdAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	run.CreatedAt = createdAt.Time
	run.StartedAt = startedAt.ptr()
	run.FinishedAt = finishedAt.ptr()

	if inputJSON != nil {
		err := json.Unmarshal(inputJSON, &run.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal input: %w", err)
		}
	}

	if outputJSON != nil {
		err := json.Unmarshal(outputJSON, &run.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	return &run, nil
}

func (s *Store) SaveStatusReport(ctx context.Context, report *models.StatusReport) error {
	if report == nil || report.ID == "" || report.ExecutionName == "" {
		return persistence.ErrInvalidStatusReport
	}

	detailJSON, err := marshalNullable(report.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal status report detail: %w", err)
	}

	query := s.dialect.Rebind(`
		INSERT INTO status_reports (
			id, execution_name, stage, entity, flow_name, flow_status, detail, reported_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			entity = EXCLUDED.entity,
			flow_name = EXCLUDED.flow_name,
			flow_status = EXCLUDED.flow_status,
			detail = EXCLUDED.detail,
			reported_at = EXCLUDED.reported_at
	`)

	_, err = s.db.ExecContext(ctx, query,
		report.ID,
		report.ExecutionName,
		string(report.Stage),
		report.Entity,
		report.FlowName,
		report.FlowStatus,
		detailJSON,
		s.dialect.timeArg(report.ReportedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save status report: %w", err)
	}

	return nil
}

// StatusReports returns the reports of one execution in reporting order.
func (s *Store) StatusReports(ctx context.Context, executionName string) ([]*models.StatusReport, error) {
	query := s.dialect.Rebind(`
		SELECT id, execution_name, stage, entity, flow_name, flow_status, detail, reported_at
		FROM status_reports
		WHERE execution_name = ?
		ORDER BY reported_at, id
	`)

	rows, err := s.db.QueryContext(ctx, query, executionName)
	if err != nil {
		return nil, fmt.Errorf("failed to query status reports: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	reports := []*models.StatusReport{}

	for rows.Next() {
		var (
			report     models.StatusReport
			stage      string
			detailJSON []byte
			reportedAt nullTime
		)

		err := rows.Scan(
			&report.ID,
			&report.ExecutionName,
			&stage,
			&report.Entity,
			&report.FlowName,
			&report.FlowStatus,
			&detailJSON,
			&reportedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status report: %w", err)
		}

		report.Stage = models.ImportStage(stage)
		report.ReportedAt = reportedAt.Time

		if detailJSON != nil {
			err := json.Unmarshal(detailJSON, &report.Detail)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal status report detail: %w", err)
			}
		}

		reports = append(reports, &report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status reports: %w", err)
	}

	return reports, nil
}
