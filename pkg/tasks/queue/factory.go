package queue

import (
	"context"
	"errors"

	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/protocol"
)

var ErrNoQueues = errors.New("queue client is required")

var queueSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"queueId": map[string]any{
			"type":        "string",
			"description": "Queue the operation applies to",
			"minLength":   1,
		},
	},
	"required": []string{"queueId"},
}

type queueInput struct {
	QueueID string `json:"queueId"`
}

// SnapshotFactory creates the get-queue-snapshot task.
type SnapshotFactory struct {
	queues *Queues
}

func NewSnapshotFactory(queues *Queues) *SnapshotFactory {
	return &SnapshotFactory{queues: queues}
}

func (f *SnapshotFactory) Create(map[string]any) (protocol.Task, error) {
	if f.queues == nil {
		return nil, ErrNoQueues
	}

	queues := f.queues

	return protocol.TaskFunc(func(ctx context.Context, input any) (any, error) {
		in, err := protocol.DecodeInput[queueInput](input)
		if err != nil {
			return nil, err
		}

		return queues.Snapshot(ctx, in.QueueID)
	}), nil
}

func (f *SnapshotFactory) ID() string {
	return importflow.ResourceGetQueueSnapshot
}

func (f *SnapshotFactory) Name() string {
	return "Get queue snapshot"
}

func (f *SnapshotFactory) Description() string {
	return "Reads the visible, in flight and delayed message counts of a queue"
}

func (f *SnapshotFactory) Schema() map[string]any {
	return queueSchema
}

// PurgeFactory creates the purge-queue task.
type PurgeFactory struct {
	queues *Queues
}

func NewPurgeFactory(queues *Queues) *PurgeFactory {
	return &PurgeFactory{queues: queues}
}

func (f *PurgeFactory) Create(map[string]any) (protocol.Task, error) {
	if f.queues == nil {
		return nil, ErrNoQueues
	}

	queues := f.queues

	return protocol.TaskFunc(func(ctx context.Context, input any) (any, error) {
		in, err := protocol.DecodeInput[queueInput](input)
		if err != nil {
			return nil, err
		}

		_, err = queues.Purge(ctx, in.QueueID)
		if err != nil {
			return nil, err
		}

		return map[string]any{"queueId": in.QueueID, "purged": true}, nil
	}), nil
}

func (f *PurgeFactory) ID() string {
	return importflow.ResourcePurgeQueue
}

func (f *PurgeFactory) Name() string {
	return "Purge queue"
}

func (f *PurgeFactory) Description() string {
	return "Deletes every message of a queue"
}

func (f *PurgeFactory) Schema() map[string]any {
	return queueSchema
}
