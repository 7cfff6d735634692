package models

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidDefinition = errors.New("invalid workflow definition")

// DefinitionError points at the state that made a definition invalid.
type DefinitionError struct {
	Path   string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidDefinition, e.Reason)
	}

	return fmt.Sprintf("%s: %s: %s", ErrInvalidDefinition, e.Path, e.Reason)
}

func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and the graph shape: the start state
// exists, every transition names a known state and each state's fields match
// its type. Nested iterators and branches are validated recursively.
func (d *Definition) Validate() error {
	err := validate.Struct(d)
	if err != nil {
		return &DefinitionError{Reason: err.Error()}
	}

	return d.validateGraph("")
}

func (d *Definition) validateGraph(prefix string) error {
	if _, ok := d.States[d.StartAt]; !ok {
		return &DefinitionError{Path: prefix, Reason: fmt.Sprintf("start state %q not found", d.StartAt)}
	}

	names := make([]string, 0, len(d.States))
	for name := range d.States {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		state := d.States[name]
		path := prefix + name

		err := state.validate(path)
		if err != nil {
			return err
		}

		for _, next := range state.Successors() {
			if _, ok := d.States[next]; !ok {
				return &DefinitionError{Path: path, Reason: fmt.Sprintf("transition to unknown state %q", next)}
			}
		}
	}

	return nil
}

func (s *State) validate(path string) error {
	fail := func(format string, args ...any) error {
		return &DefinitionError{Path: path, Reason: fmt.Sprintf(format, args...)}
	}

	switch s.Type {
	case StateTypeSucceed, StateTypeFail:
		if s.Next != "" || s.End {
			return fail("%s state cannot declare next or end", s.Type)
		}
	case StateTypeChoice:
		if s.Next != "" || s.End {
			return fail("choice state transitions only through its rules")
		}

		if len(s.Choices) == 0 {
			return fail("choice state without rules")
		}

		for i, rule := range s.Choices {
			if rule.Next == "" {
				return fail("choice rule %d without next", i)
			}

			err := rule.Validate()
			if err != nil {
				return fail("choice rule %d: %v", i, err)
			}
		}
	default:
		if s.Next == "" && !s.End {
			return fail("state must declare next or end")
		}

		if s.Next != "" && s.End {
			return fail("state cannot declare both next and end")
		}
	}

	if s.Type != StateTypeTask && (s.Resource != "" || len(s.Retry) > 0) {
		return fail("only task states take a resource or retry policies")
	}

	switch s.Type {
	case StateTypeTask:
		if s.Resource == "" {
			return fail("task state without resource")
		}
	case StateTypeWait:
		if s.Seconds <= 0 {
			return fail("wait state needs positive seconds")
		}
	case StateTypeMap:
		if s.Iterator == nil {
			return fail("map state without iterator")
		}

		err := s.Iterator.validateGraph(path + ".Iterator.")
		if err != nil {
			return err
		}
	case StateTypeParallel:
		if len(s.Branches) == 0 {
			return fail("parallel state without branches")
		}

		for i, branch := range s.Branches {
			err := branch.validateGraph(fmt.Sprintf("%s.Branches[%d].", path, i))
			if err != nil {
				return err
			}
		}
	}

	return nil
}
