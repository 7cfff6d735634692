package memory

import (
	"encoding/json"
	"maps"

	"github.com/dukex/lakeflow/pkg/models"
)

func copyRun(run *models.Run) *models.Run {
	c := *run
	c.Input = deepCopyMap(run.Input)
	c.Output = deepCopy(run.Output)

	if run.StartedAt != nil {
		t := *run.StartedAt
		c.StartedAt = &t
	}

	if run.FinishedAt != nil {
		t := *run.FinishedAt
		c.FinishedAt = &t
	}

	return &c
}

func copyReport(report *models.StatusReport) *models.StatusReport {
	c := *report
	c.Detail = deepCopyMap(report.Detail)

	return &c
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	copied, ok := deepCopy(m).(map[string]any)
	if !ok {
		return maps.Clone(m)
	}

	return copied
}

// deepCopy round-trips v through JSON, the same shape the SQL backends
// hand back. Values JSON cannot encode are returned as is.
func deepCopy(v any) any {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v
	}

	var out any

	err = json.Unmarshal(data, &out)
	if err != nil {
		return v
	}

	return out
}
