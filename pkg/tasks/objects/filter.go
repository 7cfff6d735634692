package objects

import (
	"path"
	"strings"

	"github.com/dukex/lakeflow/pkg/models"
)

const schemaExtension = ".json"

// Filter keeps the schema files among objects: non empty ".json" keys that
// are not directory markers. Each kept object gets its entity, the file name
// without extension, and the flow name "<connection>-<entity>".
func Filter(objects []models.ObjectRef, connectionName string) []models.ObjectRef {
	filtered := make([]models.ObjectRef, 0, len(objects))

	for _, object := range objects {
		if object.Size == 0 || strings.HasSuffix(object.Key, "/") {
			continue
		}

		base := path.Base(object.Key)
		if !strings.HasSuffix(base, schemaExtension) {
			continue
		}

		entity := strings.TrimSuffix(base, schemaExtension)
		if entity == "" {
			continue
		}

		object.Entity = entity
		object.FlowName = FlowName(connectionName, entity)
		filtered = append(filtered, object)
	}

	return filtered
}

// FlowName is the connector flow that imports entity.
func FlowName(connectionName, entity string) string {
	return connectionName + "-" + entity
}
