// Package protocol defines the contracts between the engine and the external
// operations it invokes.
package protocol

import (
	"context"
)

// Task performs one external operation. Input is the resolved parameter
// object of the step; the returned value must be JSON encodable.
type Task interface {
	Invoke(ctx context.Context, input any) (any, error)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, input any) (any, error)

func (f TaskFunc) Invoke(ctx context.Context, input any) (any, error) {
	return f(ctx, input)
}

// TaskFactory creates task instances and describes the task type.
type TaskFactory interface {
	// Create creates a task instance with the given configuration
	Create(config map[string]any) (Task, error)

	// ID returns the resource name states use to reference the task
	ID() string

	Name() string

	Description() string

	// Schema returns the JSON schema every task input must satisfy, or nil
	Schema() map[string]any
}
