package connector

import (
	"context"
	"errors"

	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/protocol"
)

var ErrNoClient = errors.New("connector client is required")

// TaskFactory creates one of the connector backed tasks.
type TaskFactory struct {
	id          string
	name        string
	description string
	schema      map[string]any
	client      *Client
	invoke      func(ctx context.Context, c *Client, input any) (any, error)
}

func (f *TaskFactory) Create(map[string]any) (protocol.Task, error) {
	if f.client == nil {
		return nil, ErrNoClient
	}

	client := f.client
	invoke := f.invoke

	return protocol.TaskFunc(func(ctx context.Context, input any) (any, error) {
		return invoke(ctx, client, input)
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

func stringProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
		"minLength":   1,
	}
}

func objectSchema(required []string, properties map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Factories returns the factories of every task served by client.
func Factories(client *Client) []protocol.TaskFactory {
	return []protocol.TaskFactory{
		&TaskFactory{
			id:          importflow.ResourcePullSchema,
			name:        "Pull schema",
			description: "Refreshes the schema of an entity from its metadata object",
			schema: objectSchema([]string{"entity", "key"}, map[string]any{
				"entity": stringProperty("Entity whose schema is refreshed"),
				"key":    stringProperty("Metadata object key"),
			}),
			client: client,
			invoke: pullSchema,
		},
		&TaskFactory{
			id:          importflow.ResourceUpdateExternalFlow,
			name:        "Update external flow",
			description: "Points a connector flow at the latest schema of its entity",
			schema: objectSchema([]string{"entity", "flowName", "schemaRef"}, map[string]any{
				"entity":    stringProperty("Entity imported by the flow"),
				"flowName":  stringProperty("Connector flow name"),
				"schemaRef": stringProperty("Schema reference returned by pull-schema"),
			}),
			client: client,
			invoke: updateFlow,
		},
		&TaskFactory{
			id:          importflow.ResourceStartJob,
			name:        "Start job",
			description: "Starts the import job of a flow",
			schema: objectSchema([]string{"flowName"}, map[string]any{
				"flowName": stringProperty("Connector flow name"),
			}),
			client: client,
			invoke: startJob,
		},
		&TaskFactory{
			id:          importflow.ResourceDescribeJob,
			name:        "Describe job execution",
			description: "Reads the latest execution record of a flow",
			schema: objectSchema([]string{"flowName"}, map[string]any{
				"flowName": stringProperty("Connector flow name"),
			}),
			client: client,
			invoke: describeJob,
		},
		&TaskFactory{
			id:          importflow.ResourceListEntities,
			name:        "List entities",
			description: "Lists the entities exposed by the connection",
			schema:      map[string]any{"type": "object"},
			client:      client,
			invoke:      listEntities,
		},
	}
}

type flowInput struct {
	Entity    string `json:"entity"`
	Key       string `json:"key"`
	FlowName  string `json:"flowName"`
	SchemaRef string `json:"schemaRef"`
}

func pullSchema(ctx context.Context, c *Client, input any) (any, error) {
	in, err := protocol.DecodeInput[flowInput](input)
	if err != nil {
		return nil, err
	}

	ref, err := c.PullSchema(ctx, in.Entity, in.Key)
	if err != nil {
		return nil, err
	}

	return map[string]any{"schemaRef": ref}, nil
}

func updateFlow(ctx context.Context, c *Client, input any) (any, error) {
	in, err := protocol.DecodeInput[flowInput](input)
	if err != nil {
		return nil, err
	}

	return c.UpdateFlow(ctx, in.FlowName, in.Entity, in.SchemaRef)
}

func startJob(ctx context.Context, c *Client, input any) (any, error) {
	in, err := protocol.DecodeInput[flowInput](input)
	if err != nil {
		return nil, err
	}

	id, err := c.StartJob(ctx, in.FlowName)
	if err != nil {
		return nil, err
	}

	return map[string]any{"executionId": id}, nil
}

func describeJob(ctx context.Context, c *Client, input any) (any, error) {
	in, err := protocol.DecodeInput[flowInput](input)
	if err != nil {
		return nil, err
	}

	record, err := c.LatestExecution(ctx, in.FlowName)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status": record.Status,
		"record": record,
	}, nil
}

func listEntities(ctx context.Context, c *Client, _ any) (any, error) {
	entities, err := c.Entities(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{"entities": entities}, nil
}
