package engine

import (
	"time"
)

// contextObject backs "$$." paths: Execution.{Id,Name,StartTime},
// State.{Name,EnteredTime} and, inside a Map, Map.Item.{Index,Value}.
type contextObject struct {
	execution map[string]any
	state     map[string]any
	item      map[string]any
	itemIndex int
}

func newContextObject(name string, started time.Time) contextObject {
	return contextObject{
		execution: map[string]any{
			"Id":        name,
			"Name":      name,
			"StartTime": started.UTC().Format(time.RFC3339Nano),
		},
		itemIndex: -1,
	}
}

func (c contextObject) executionName() string {
	name, _ := c.execution["Name"].(string)

	return name
}

func (c contextObject) enterState(name string, at time.Time) contextObject {
	c.state = map[string]any{
		"Name":        name,
		"EnteredTime": at.UTC().Format(time.RFC3339Nano),
	}

	return c
}

func (c contextObject) withItem(index int, value any) contextObject {
	c.item = map[string]any{
		"Index": float64(index),
		"Value": value,
	}
	c.itemIndex = index

	return c
}

func (c contextObject) value() map[string]any {
	v := map[string]any{
		"Execution": c.execution,
	}

	if c.state != nil {
		v["State"] = c.state
	}

	if c.item != nil {
		v["Map"] = map[string]any{"Item": c.item}
	}

	return v
}
