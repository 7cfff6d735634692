package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type validatingTask struct {
	id     string
	schema map[string]any
	next   protocol.Task
}

func (t *validatingTask) Invoke(ctx context.Context, input any) (any, error) {
	err := ValidateInput(t.schema, input)
	if err != nil {
		return nil, protocol.DomainInvalid(fmt.Errorf("task %s: %w", t.id, err))
	}

	return t.next.Invoke(ctx, input)
}

// ValidateInput checks input against a JSON schema.
func ValidateInput(schema map[string]any, input any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
	if err != nil {
		return fmt.Errorf("schema validation could not run: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("input does not match schema: %s", strings.Join(messages, "; "))
	}

	return nil
}
