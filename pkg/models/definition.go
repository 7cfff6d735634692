// Package models defines the workflow definition, step variants and run records.
package models

import (
	"maps"
	"slices"
)

// StateType tags the variant of a State.
type StateType string

const (
	StateTypeTask     StateType = "Task"
	StateTypeWait     StateType = "Wait"
	StateTypeChoice   StateType = "Choice"
	StateTypeMap      StateType = "Map"
	StateTypeParallel StateType = "Parallel"
	StateTypeSucceed  StateType = "Succeed"
	StateTypePass     StateType = "Pass"
	StateTypeFail     StateType = "Fail"
)

// Definition is a directed graph of named states with a single entry point.
// Map iterators and Parallel branches are nested Definitions without a timeout.
type Definition struct {
	Comment        string            `json:"comment,omitempty"        yaml:"comment,omitempty"`
	StartAt        string            `json:"startAt"                 yaml:"startAt"                  validate:"required"`
	TimeoutSeconds int               `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty" validate:"gte=0"`
	States         map[string]*State `json:"states"                   yaml:"states"                   validate:"required,min=1,dive,required"`
}

// State is a tagged union over the step variants. Only the fields relevant to
// Type are meaningful; Validate rejects fields that do not belong to it.
type State struct {
	Type    StateType `json:"type"              yaml:"type"              validate:"required,oneof=Task Wait Choice Map Parallel Succeed Pass Fail"`
	Comment string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	Next    string    `json:"next,omitempty"    yaml:"next,omitempty"`
	End     bool      `json:"end,omitempty"     yaml:"end,omitempty"`

	InputPath      string         `json:"inputPath,omitempty"      yaml:"inputPath,omitempty"`
	OutputPath     string         `json:"outputPath,omitempty"     yaml:"outputPath,omitempty"`
	ResultPath     string         `json:"resultPath,omitempty"     yaml:"resultPath,omitempty"`
	DiscardResult  bool           `json:"discardResult,omitempty"  yaml:"discardResult,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"      yaml:"parameters,omitempty"`
	ResultSelector map[string]any `json:"resultSelector,omitempty" yaml:"resultSelector,omitempty"`

	// Task
	Resource       string        `json:"resource,omitempty"        yaml:"resource,omitempty"`
	TimeoutSeconds int           `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty" validate:"gte=0"`
	Retry          []RetryPolicy `json:"retry,omitempty"           yaml:"retry,omitempty"           validate:"dive"`

	// Wait
	Seconds float64 `json:"seconds,omitempty" yaml:"seconds,omitempty" validate:"gte=0"`

	// Choice
	Choices []ChoiceRule `json:"choices,omitempty" yaml:"choices,omitempty"`
	Default string       `json:"default,omitempty" yaml:"default,omitempty"`

	// Map
	Iterator       *Definition `json:"iterator,omitempty"        yaml:"iterator,omitempty"`
	ItemsPath      string      `json:"itemsPath,omitempty"      yaml:"itemsPath,omitempty"`
	MaxConcurrency int         `json:"maxConcurrency,omitempty" yaml:"maxConcurrency,omitempty" validate:"gte=0"`

	// Parallel
	Branches []*Definition `json:"branches,omitempty" yaml:"branches,omitempty"`

	// Pass
	Result any `json:"result,omitempty" yaml:"result,omitempty"`

	// Fail
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	Cause string `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// Terminal reports whether reaching this state ends its definition.
func (s *State) Terminal() bool {
	switch s.Type {
	case StateTypeSucceed, StateTypeFail:
		return true
	case StateTypeChoice:
		return false
	default:
		return s.End
	}
}

// Successors lists every state name this state may transition to.
func (s *State) Successors() []string {
	var next []string

	if s.Next != "" {
		next = append(next, s.Next)
	}

	for _, rule := range s.Choices {
		next = append(next, rule.Next)
	}

	if s.Default != "" {
		next = append(next, s.Default)
	}

	return next
}

// Resources lists, sorted and without duplicates, the task resources of the
// definition and of every nested Map iterator and Parallel branch.
func (d *Definition) Resources() []string {
	seen := map[string]struct{}{}
	d.collectResources(seen)

	return slices.Sorted(maps.Keys(seen))
}

func (d *Definition) collectResources(seen map[string]struct{}) {
	if d == nil {
		return
	}

	for _, state := range d.States {
		if state == nil {
			continue
		}

		if state.Type == StateTypeTask && state.Resource != "" {
			seen[state.Resource] = struct{}{}
		}

		state.Iterator.collectResources(seen)

		for _, branch := range state.Branches {
			branch.collectResources(seen)
		}
	}
}
