package models

import "time"

// ObjectRef points at one schema metadata object. Entity and FlowName are
// filled in by the filter step.
type ObjectRef struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	Entity       string    `json:"entity,omitempty"`
	FlowName     string    `json:"flowName,omitempty"`
}

// EntityRef names one entity exposed by the connector.
type EntityRef struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

// JobExecution is one execution record of an import job.
type JobExecution struct {
	ExecutionID   string         `json:"executionId"`
	Status        string         `json:"status"`
	StartedAt     *time.Time     `json:"startedAt,omitempty"`
	LastUpdatedAt *time.Time     `json:"lastUpdatedAt,omitempty"`
	RecordsRead   int64          `json:"recordsRead,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// QueueSnapshot is a point-in-time read of a queue's counters.
type QueueSnapshot struct {
	Visible  int64 `json:"visible"`
	InFlight int64 `json:"inFlight"`
	Delayed  int64 `json:"delayed"`
}

// Drained reports whether every counter is zero.
func (q QueueSnapshot) Drained() bool {
	return q.Visible == 0 && q.InFlight == 0 && q.Delayed == 0
}
