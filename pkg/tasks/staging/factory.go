package staging

import (
	"context"
	"errors"

	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
)

var ErrNoStore = errors.New("staging store is required")

// TaskFactory creates one of the staging table tasks.
type TaskFactory struct {
	id          string
	name        string
	description string
	schema      map[string]any
	store       *Store
	invoke      func(ctx context.Context, s *Store, input any) (any, error)
}

func (f *TaskFactory) Create(map[string]any) (protocol.Task, error) {
	if f.store == nil {
		return nil, ErrNoStore
	}

	store := f.store
	invoke := f.invoke

	return protocol.TaskFunc(func(ctx context.Context, input any) (any, error) {
		return invoke(ctx, store, input)
	}), nil
}

func (f *TaskFactory) ID() string {
	return f.id
}

func (f *TaskFactory) Name() string {
	return f.name
}

func (f *TaskFactory) Description() string {
	return f.description
}

func (f *TaskFactory) Schema() map[string]any {
	return f.schema
}

var entitySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"entity": map[string]any{
			"type":        "string",
			"description": "Entity whose tables are managed",
			"minLength":   1,
		},
	},
	"required": []string{"entity"},
}

// Factories returns the factories of the staging tasks backed by store.
func Factories(store *Store) []protocol.TaskFactory {
	return []protocol.TaskFactory{
		&TaskFactory{
			id:          importflow.ResourcePrepareStagingTable,
			name:        "Prepare staging table",
			description: "Creates an empty staging table for the next import of an entity",
			schema:      entitySchema,
			store:       store,
			invoke:      prepare,
		},
		&TaskFactory{
			id:          importflow.ResourceCleanupStaging,
			name:        "Cleanup staging",
			description: "Swaps the staging table of an entity in as its live table",
			schema:      entitySchema,
			store:       store,
			invoke:      cleanup,
		},
		&TaskFactory{
			id:          importflow.ResourceFinalizeStaging,
			name:        "Finalize staging",
			description: "Drops the staging tables left for the listed entities",
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"entities": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"name"},
						},
					},
				},
				"required": []string{"entities"},
			},
			store:  store,
			invoke: finalize,
		},
	}
}

type entityInput struct {
	Entity   string             `json:"entity"`
	Entities []models.EntityRef `json:"entities"`
}

func prepare(ctx context.Context, s *Store, input any) (any, error) {
	in, err := protocol.DecodeInput[entityInput](input)
	if err != nil {
		return nil, err
	}

	table, err := s.Prepare(ctx, in.Entity)
	if err != nil {
		return nil, err
	}

	return map[string]any{"table": table, "liveTable": LiveTable(in.Entity)}, nil
}

func cleanup(ctx context.Context, s *Store, input any) (any, error) {
	in, err := protocol.DecodeInput[entityInput](input)
	if err != nil {
		return nil, err
	}

	swapped, err := s.Swap(ctx, in.Entity)
	if err != nil {
		return nil, err
	}

	return map[string]any{"swapped": swapped, "table": LiveTable(in.Entity)}, nil
}

func finalize(ctx context.Context, s *Store, input any) (any, error) {
	in, err := protocol.DecodeInput[entityInput](input)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(in.Entities))
	for _, entity := range in.Entities {
		names = append(names, entity.Name)
	}

	dropped, err := s.Drop(ctx, names)
	if err != nil {
		return nil, err
	}

	return map[string]any{"dropped": dropped}, nil
}
