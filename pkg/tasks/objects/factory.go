package objects

import (
	"context"
	"errors"

	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
)

var ErrNoStore = errors.New("object store is required")

// ListObjectsFactory creates the list-objects task.
type ListObjectsFactory struct {
	store ObjectStore
}

func NewListObjectsFactory(store ObjectStore) *ListObjectsFactory {
	return &ListObjectsFactory{store: store}
}

func (f *ListObjectsFactory) Create(map[string]any) (protocol.Task, error) {
	if f.store == nil {
		return nil, ErrNoStore
	}

	return &ListObjects{store: f.store}, nil
}

func (f *ListObjectsFactory) ID() string {
	return importflow.ResourceListObjects
}

func (f *ListObjectsFactory) Name() string {
	return "List objects"
}

func (f *ListObjectsFactory) Description() string {
	return "Lists the objects stored under a location and key prefix"
}

func (f *ListObjectsFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "Location holding the schema metadata files",
				"minLength":   1,
			},
			"prefix": map[string]any{
				"type":        "string",
				"description": "Only keys starting with this prefix are listed",
				"examples":    []string{"schemas/"},
			},
		},
		"required": []string{"location"},
	}
}

type listObjectsInput struct {
	Location string `json:"location"`
	Prefix   string `json:"prefix"`
}

// ListObjects returns {"contents": [...]} for its location and prefix.
type ListObjects struct {
	store ObjectStore
}

func (t *ListObjects) Invoke(ctx context.Context, input any) (any, error) {
	in, err := protocol.DecodeInput[listObjectsInput](input)
	if err != nil {
		return nil, err
	}

	contents, err := t.store.List(ctx, in.Location, in.Prefix)
	if err != nil {
		return nil, err
	}

	return map[string]any{"contents": contents}, nil
}

// FilterObjectsFactory creates the filter-objects task.
type FilterObjectsFactory struct{}

func NewFilterObjectsFactory() *FilterObjectsFactory {
	return &FilterObjectsFactory{}
}

func (f *FilterObjectsFactory) Create(map[string]any) (protocol.Task, error) {
	return protocol.TaskFunc(filterObjects), nil
}

func (f *FilterObjectsFactory) ID() string {
	return importflow.ResourceFilterObjects
}

func (f *FilterObjectsFactory) Name() string {
	return "Filter objects"
}

func (f *FilterObjectsFactory) Description() string {
	return "Keeps the schema files of a listing and names the entity and flow of each"
}

func (f *FilterObjectsFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"objects": map[string]any{
				"type":        "array",
				"description": "Objects returned by list-objects",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"key"},
				},
			},
			"connectionName": map[string]any{
				"type":        "string",
				"description": "Connector connection the flows belong to",
				"minLength":   1,
			},
		},
		"required": []string{"objects", "connectionName"},
	}
}

type filterObjectsInput struct {
	Objects        []models.ObjectRef `json:"objects"`
	ConnectionName string             `json:"connectionName"`
}

func filterObjects(_ context.Context, input any) (any, error) {
	in, err := protocol.DecodeInput[filterObjectsInput](input)
	if err != nil {
		return nil, err
	}

	return Filter(in.Objects, in.ConnectionName), nil
}
