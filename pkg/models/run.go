package models

import "time"

// RunStatus is the lifecycle state of one workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusTimedOut  RunStatus = "timed_out"
)

func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusTimedOut
}

// Run is the persisted record of one execution of the import workflow.
type Run struct {
	ID            string         `json:"id"                   validate:"required"`
	ExecutionName string         `json:"execution_name"`
	Status        RunStatus      `json:"status"               validate:"required,oneof=pending running succeeded failed timed_out"`
	Trigger       string         `json:"trigger"`
	Input         map[string]any `json:"input,omitempty"`
	Output        any            `json:"output,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}

// ImportStage names the phase a status report belongs to.
type ImportStage string

const (
	ImportStagePrepare ImportStage = "PREPARE"
	ImportStageBegin   ImportStage = "BEGIN"
	ImportStageImport  ImportStage = "IMPORT"
	ImportStageCleanup ImportStage = "CLEANUP"
)

// StatusReport is written once per entity and stage by the report-status task.
type StatusReport struct {
	ID            string         `json:"id"`
	ExecutionName string         `json:"execution_name" validate:"required"`
	Stage         ImportStage    `json:"stage"          validate:"required,oneof=PREPARE BEGIN IMPORT CLEANUP"`
	Entity        string         `json:"entity,omitempty"`
	FlowName      string         `json:"flow_name,omitempty"`
	FlowStatus    string         `json:"flow_status,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
	ReportedAt    time.Time      `json:"reported_at"`
}
