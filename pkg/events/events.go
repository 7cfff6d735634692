// Package events defines event types and structures for run lifecycle notifications.
package events

import (
	"errors"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every lakeflow event; consumers filter on the event type
// metadata.
const Topic = "lakeflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run requests, published by the API and the scheduler.
	RunRequestedEvent EventType = "run.requested"

	// Run lifecycle events, published by the worker.
	RunStartedEvent   EventType = "run.started"
	RunSucceededEvent EventType = "run.succeeded"
	RunFailedEvent    EventType = "run.failed"
	RunTimedOutEvent  EventType = "run.timed_out"

	TaskRetryingEvent EventType = "task.retrying"

	ImportStageReportedEvent EventType = "import.stage.reported"
)

var ErrMissingRunID = errors.New("run_id is required")

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

func (b BaseEvent) Validate() error {
	if b.RunID == "" {
		return ErrMissingRunID
	}

	return nil
}

type RunRequested struct {
	BaseEvent

	Trigger string         `json:"trigger"`
	Input   map[string]any `json:"input,omitempty"`
}

func (e RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type RunStarted struct {
	BaseEvent

	ExecutionName string `json:"execution_name"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunSucceeded struct {
	BaseEvent

	ExecutionName string        `json:"execution_name"`
	Output        any           `json:"output,omitempty"`
	Duration      time.Duration `json:"duration"`
}

func (e RunSucceeded) GetType() EventType {
	return RunSucceededEvent
}

type RunFailed struct {
	BaseEvent

	ExecutionName string        `json:"execution_name"`
	Error         string        `json:"error"`
	ErrorKind     string        `json:"error_kind"`
	Duration      time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunTimedOut struct {
	BaseEvent

	ExecutionName string        `json:"execution_name"`
	Timeout       time.Duration `json:"timeout"`
	Duration      time.Duration `json:"duration"`
}

func (e RunTimedOut) GetType() EventType {
	return RunTimedOutEvent
}

type TaskRetrying struct {
	BaseEvent

	ExecutionName string        `json:"execution_name"`
	State         string        `json:"state"`
	Resource      string        `json:"resource"`
	ItemIndex     int           `json:"item_index"`
	Attempt       int           `json:"attempt"`
	ErrorKind     string        `json:"error_kind"`
	Delay         time.Duration `json:"delay"`
}

func (e TaskRetrying) GetType() EventType {
	return TaskRetryingEvent
}

type ImportStageReported struct {
	BaseEvent

	Report models.StatusReport `json:"report"`
}

func (e ImportStageReported) GetType() EventType {
	return ImportStageReportedEvent
}

// Decode returns an empty event value for eventType, ready to unmarshal into.
func Decode(eventType EventType) (any, bool) {
	switch eventType {
	case RunRequestedEvent:
		return &RunRequested{}, true
	case RunStartedEvent:
		return &RunStarted{}, true
	case RunSucceededEvent:
		return &RunSucceeded{}, true
	case RunFailedEvent:
		return &RunFailed{}, true
	case RunTimedOutEvent:
		return &RunTimedOut{}, true
	case TaskRetryingEvent:
		return &TaskRetrying{}, true
	case ImportStageReportedEvent:
		return &ImportStageReported{}, true
	default:
		return nil, false
	}
}
