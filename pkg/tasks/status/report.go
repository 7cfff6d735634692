// Package status records the per entity progress reports of an import run.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/lakeflow/pkg/eventbus"
	"github.com/dukex/lakeflow/pkg/events"
	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrNoStore = errors.New("report store is required")

// ReportStore persists status reports.
type ReportStore interface {
	SaveStatusReport(ctx context.Context, report *models.StatusReport) error
}

// ReportStatusFactory creates the report-status task.
type ReportStatusFactory struct {
	store     ReportStore
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

// NewReportStatusFactory returns a factory whose tasks save reports to store
// and, when publisher is not nil, announce them on the event bus.
func NewReportStatusFactory(store ReportStore, publisher eventbus.EventPublisher, logger *slog.Logger) *ReportStatusFactory {
	return &ReportStatusFactory{store: store, publisher: publisher, logger: logger}
}

func (f *ReportStatusFactory) Create(map[string]any) (protocol.Task, error) {
	if f.store == nil {
		return nil, ErrNoStore
	}

	return &Reporter{
		store:     f.store,
		publisher: f.publisher,
		logger:    f.logger.With("module", "report_status"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}, nil
}

func (f *ReportStatusFactory) ID() string {
	return importflow.ResourceReportStatus
}

func (f *ReportStatusFactory) Name() string {
	return "Report status"
}

func (f *ReportStatusFactory) Description() string {
	return "Records the import stage reached by one entity of a run"
}

func (f *ReportStatusFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"executionId": map[string]any{
				"type":        "string",
				"description": "Execution name of the run",
				"minLength":   1,
			},
			"importStage": map[string]any{
				"type": "string",
				"enum": []string{
					string(models.ImportStagePrepare),
					string(models.ImportStageBegin),
					string(models.ImportStageImport),
					string(models.ImportStageCleanup),
				},
			},
			"object": map[string]any{
				"type":        "object",
				"description": "Schema object the report is about",
			},
			"entity":     map[string]any{"type": "string"},
			"flowName":   map[string]any{"type": "string"},
			"flowStatus": map[string]any{"type": "string"},
		},
		"required": []string{"executionId", "importStage"},
	}
}

type reportInput struct {
	ExecutionID string             `json:"executionId"`
	ImportStage models.ImportStage `json:"importStage"`
	Object      *models.ObjectRef  `json:"object"`
	Entity      string             `json:"entity"`
	FlowName    string             `json:"flowName"`
	FlowStatus  string             `json:"flowStatus"`
}

// Reporter is the report-status task.
type Reporter struct {
	store     ReportStore
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func (r *Reporter) Invoke(ctx context.Context, input any) (any, error) {
	in, err := protocol.DecodeInput[reportInput](input)
	if err != nil {
		return nil, err
	}

	report := &models.StatusReport{
		ID:            uuid.NewString(),
		ExecutionName: in.ExecutionID,
		Stage:         in.ImportStage,
		Entity:        in.Entity,
		FlowName:      in.FlowName,
		FlowStatus:    in.FlowStatus,
		Detail:        detail(input),
		ReportedAt:    r.now().UTC(),
	}

	if in.Object != nil {
		if report.Entity == "" {
			report.Entity = in.Object.Entity
		}

		if report.FlowName == "" {
			report.FlowName = in.Object.FlowName
		}
	}

	err = r.validate.Struct(report)
	if err != nil {
		return nil, protocol.DomainInvalid(fmt.Errorf("invalid status report: %w", err))
	}

	err = r.store.SaveStatusReport(ctx, report)
	if err != nil {
		return nil, protocol.Transient(fmt.Errorf("save status report: %w", err))
	}

	r.logger.InfoContext(ctx, "Import stage reported",
		"execution", report.ExecutionName,
		"stage", report.Stage,
		"entity", report.Entity,
		"flow_status", report.FlowStatus,
	)

	if r.publisher != nil {
		event := events.ImportStageReported{
			BaseEvent: events.NewBaseEvent(events.ImportStageReportedEvent, report.ExecutionName),
			Report:    *report,
		}

		// The report is already stored; a lost notification does not fail the stage.
		err = r.publisher.Publish(ctx, report.ExecutionName, event)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish status report", "report_id", report.ID, "error", err)
		}
	}

	return map[string]any{
		"ack":      true,
		"reportId": report.ID,
	}, nil
}

var reportFields = map[string]bool{
	"executionId": true,
	"importStage": true,
	"entity":      true,
	"flowName":    true,
	"flowStatus":  true,
}

// detail keeps every input field the report has no column for.
func detail(input any) map[string]any {
	fields, ok := input.(map[string]any)
	if !ok {
		return nil
	}

	out := map[string]any{}

	for key, value := range fields {
		if !reportFields[key] {
			out[key] = value
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
