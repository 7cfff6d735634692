package models

import (
	"errors"
	"fmt"
)

var ErrInvalidChoiceRule = errors.New("invalid choice rule")

// ChoiceRule is one predicate of a Choice state. A leaf compares the value at
// Variable with exactly one of the equality operands; a composite combines
// nested rules with And, Or or Not. Only top-level rules carry Next.
type ChoiceRule struct {
	Variable      string   `json:"variable,omitempty"       yaml:"variable,omitempty"`
	StringEquals  *string  `json:"stringEquals,omitempty"  yaml:"stringEquals,omitempty"`
	NumericEquals *float64 `json:"numericEquals,omitempty" yaml:"numericEquals,omitempty"`
	BooleanEquals *bool    `json:"booleanEquals,omitempty" yaml:"booleanEquals,omitempty"`

	And []ChoiceRule `json:"and,omitempty" yaml:"and,omitempty"`
	Or  []ChoiceRule `json:"or,omitempty"  yaml:"or,omitempty"`
	Not *ChoiceRule  `json:"not,omitempty" yaml:"not,omitempty"`

	Next string `json:"next,omitempty" yaml:"next,omitempty"`
}

// Lookup resolves a path against the state being evaluated.
type Lookup func(path string) (any, bool)

func StringEquals(variable, value string) ChoiceRule {
	return ChoiceRule{Variable: variable, StringEquals: &value}
}

func NumericEquals(variable string, value float64) ChoiceRule {
	return ChoiceRule{Variable: variable, NumericEquals: &value}
}

func BooleanEquals(variable string, value bool) ChoiceRule {
	return ChoiceRule{Variable: variable, BooleanEquals: &value}
}

func And(rules ...ChoiceRule) ChoiceRule {
	return ChoiceRule{And: rules}
}

func Or(rules ...ChoiceRule) ChoiceRule {
	return ChoiceRule{Or: rules}
}

func Not(rule ChoiceRule) ChoiceRule {
	return ChoiceRule{Not: &rule}
}

// Then returns a copy of the rule that transitions to next when it matches.
func (r ChoiceRule) Then(next string) ChoiceRule {
	r.Next = next

	return r
}

// Validate checks the rule is exactly one leaf comparison or one combinator.
func (r ChoiceRule) Validate() error {
	operands := 0

	for _, set := range []bool{
		r.StringEquals != nil,
		r.NumericEquals != nil,
		r.BooleanEquals != nil,
		len(r.And) > 0,
		len(r.Or) > 0,
		r.Not != nil,
	} {
		if set {
			operands++
		}
	}

	if operands != 1 {
		return fmt.Errorf("%w: expected exactly one operator, got %d", ErrInvalidChoiceRule, operands)
	}

	leaf := len(r.And) == 0 && len(r.Or) == 0 && r.Not == nil
	if leaf && r.Variable == "" {
		return fmt.Errorf("%w: comparison without variable", ErrInvalidChoiceRule)
	}

	if !leaf && r.Variable != "" {
		return fmt.Errorf("%w: combinator with variable %q", ErrInvalidChoiceRule, r.Variable)
	}

	nested := append(append([]ChoiceRule{}, r.And...), r.Or...)
	if r.Not != nil {
		nested = append(nested, *r.Not)
	}

	for _, child := range nested {
		if child.Next != "" {
			return fmt.Errorf("%w: nested rule declares next %q", ErrInvalidChoiceRule, child.Next)
		}

		err := child.Validate()
		if err != nil {
			return err
		}
	}

	return nil
}

// Evaluate applies the rule. A variable that does not resolve compares false.
func (r ChoiceRule) Evaluate(lookup Lookup) bool {
	switch {
	case len(r.And) > 0:
		for _, child := range r.And {
			if !child.Evaluate(lookup) {
				return false
			}
		}

		return true
	case len(r.Or) > 0:
		for _, child := range r.Or {
			if child.Evaluate(lookup) {
				return true
			}
		}

		return false
	case r.Not != nil:
		return !r.Not.Evaluate(lookup)
	}

	value, ok := lookup(r.Variable)
	if !ok {
		return false
	}

	switch {
	case r.StringEquals != nil:
		s, ok := value.(string)

		return ok && s == *r.StringEquals
	case r.NumericEquals != nil:
		n, ok := toFloat(value)

		return ok && n == *r.NumericEquals
	case r.BooleanEquals != nil:
		b, ok := value.(bool)

		return ok && b == *r.BooleanEquals
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
