package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollingDefinition() *Definition {
	return &Definition{
		StartAt:        "Describe",
		TimeoutSeconds: 60,
		States: map[string]*State{
			"Describe": {
				Type:     StateTypeTask,
				Resource: "describe-job-execution",
				Retry:    []RetryPolicy{DefaultRetryPolicy()},
				Next:     "Done?",
			},
			"Done?": {
				Type: StateTypeChoice,
				Choices: []ChoiceRule{
					Or(
						StringEquals("$.status", "Successful"),
						StringEquals("$.status", "Error"),
					).Then("Finished"),
				},
				Default: "Wait",
			},
			"Wait":     {Type: StateTypeWait, Seconds: 60, Next: "Describe"},
			"Finished": {Type: StateTypeSucceed},
		},
	}
}

func TestDefinition_Validate_Valid(t *testing.T) {
	require.NoError(t, pollingDefinition().Validate())
}

func TestDefinition_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Definition)
		reason string
	}{
		{
			name:   "missing start state",
			mutate: func(d *Definition) { d.StartAt = "Nope" },
			reason: `start state "Nope" not found`,
		},
		{
			name:   "unknown transition",
			mutate: func(d *Definition) { d.States["Wait"].Next = "Elsewhere" },
			reason: `transition to unknown state "Elsewhere"`,
		},
		{
			name:   "task without resource",
			mutate: func(d *Definition) { d.States["Describe"].Resource = "" },
			reason: "task state without resource",
		},
		{
			name:   "dangling state",
			mutate: func(d *Definition) { d.States["Wait"].Next = "" },
			reason: "state must declare next or end",
		},
		{
			name:   "next and end",
			mutate: func(d *Definition) { d.States["Wait"].End = true },
			reason: "state cannot declare both next and end",
		},
		{
			name:   "wait without seconds",
			mutate: func(d *Definition) { d.States["Wait"].Seconds = 0 },
			reason: "wait state needs positive seconds",
		},
		{
			name: "choice rule with two operators",
			mutate: func(d *Definition) {
				rule := StringEquals("$.status", "x")
				rule.NumericEquals = new(float64)
				d.States["Done?"].Choices = []ChoiceRule{rule.Then("Finished")}
			},
			reason: "expected exactly one operator",
		},
		{
			name:   "retry on non task",
			mutate: func(d *Definition) { d.States["Wait"].Retry = []RetryPolicy{DefaultRetryPolicy()} },
			reason: "only task states take a resource or retry policies",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			definition := pollingDefinition()
			tt.mutate(definition)

			err := definition.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestDefinition_Validate_NestedIterator(t *testing.T) {
	definition := &Definition{
		StartAt: "Fan",
		States: map[string]*State{
			"Fan": {
				Type: StateTypeMap,
				End:  true,
				Iterator: &Definition{
					StartAt: "Work",
					States: map[string]*State{
						"Work": {Type: StateTypeTask, Resource: "pull-schema", Next: "Missing"},
					},
				},
			},
		},
	}

	err := definition.Validate()

	var definitionErr *DefinitionError
	require.True(t, errors.As(err, &definitionErr))
	assert.Equal(t, "Fan.Iterator.Work", definitionErr.Path)
}

func TestDefinition_YAMLRoundTrip(t *testing.T) {
	data, err := pollingDefinition().MarshalYAMLDocument()
	require.NoError(t, err)

	parsed, err := ParseDefinition(data)
	require.NoError(t, err)

	assert.Equal(t, "Describe", parsed.StartAt)
	assert.Equal(t, 60, parsed.TimeoutSeconds)
	require.Len(t, parsed.States["Done?"].Choices, 1)
	assert.Equal(t, "Finished", parsed.States["Done?"].Choices[0].Next)
	assert.Equal(t, 6, parsed.States["Describe"].Retry[0].MaxAttempts)
}

func TestParseDefinition_RejectsUnknownFields(t *testing.T) {
	_, err := ParseDefinition([]byte("startAt: A\nstates:\n  A:\n    type: Succeed\n    bogus: 1\n"))
	require.Error(t, err)
}

func TestRetryPolicy_Delay(t *testing.T) {
	policy := DefaultRetryPolicy()

	var delays []time.Duration
	for attempt := 1; attempt < policy.MaxAttempts; attempt++ {
		delays = append(delays, policy.Delay(attempt, time.Second))
	}

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second}, delays)

	policy.MaxDelaySeconds = 10
	assert.Equal(t, 10*time.Second, policy.Delay(5, time.Second))
	assert.Equal(t, 2*time.Millisecond, policy.Delay(1, time.Millisecond))
}

func TestRetryPolicy_Matches(t *testing.T) {
	policy := DefaultRetryPolicy(ErrorKindConnectorServerError)

	assert.True(t, policy.Matches(ErrorKindTransientService))
	assert.True(t, policy.Matches(ErrorKindConnectorServerError))
	assert.False(t, DefaultRetryPolicy().Matches(ErrorKindConnectorServerError))

	policy.ErrorEquals = append(policy.ErrorEquals, ErrorKindDomainInvalid)
	assert.False(t, policy.Matches(ErrorKindDomainInvalid))
}

func TestChoiceRule_Evaluate(t *testing.T) {
	state := map[string]any{
		"status":  "Successful",
		"visible": float64(0),
		"ok":      true,
	}
	lookup := func(path string) (any, bool) {
		v, ok := state[path]

		return v, ok
	}

	assert.True(t, StringEquals("status", "Successful").Evaluate(lookup))
	assert.False(t, StringEquals("status", "Error").Evaluate(lookup))
	assert.True(t, NumericEquals("visible", 0).Evaluate(lookup))
	assert.False(t, NumericEquals("status", 0).Evaluate(lookup))
	assert.True(t, BooleanEquals("ok", true).Evaluate(lookup))
	assert.False(t, StringEquals("missing", "").Evaluate(lookup))
	assert.True(t, Not(StringEquals("missing", "")).Evaluate(lookup))
	assert.True(t, And(NumericEquals("visible", 0), BooleanEquals("ok", true)).Evaluate(lookup))
	assert.False(t, And(NumericEquals("visible", 0), BooleanEquals("ok", false)).Evaluate(lookup))
	assert.True(t, Or(StringEquals("status", "Error"), StringEquals("status", "Successful")).Evaluate(lookup))
}

func TestQueueSnapshot_Drained(t *testing.T) {
	assert.True(t, QueueSnapshot{}.Drained())
	assert.False(t, QueueSnapshot{Visible: 5}.Drained())
	assert.False(t, QueueSnapshot{InFlight: 1}.Drained())
	assert.False(t, QueueSnapshot{Delayed: 1}.Drained())
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunStatusPending.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
	assert.True(t, RunStatusSucceeded.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
	assert.True(t, RunStatusTimedOut.Terminal())
}

func TestDefinition_Resources(t *testing.T) {
	definition := &Definition{
		StartAt: "List",
		States: map[string]*State{
			"List": {Type: StateTypeTask, Resource: "list-objects", Next: "Fan"},
			"Fan": {
				Type: StateTypeMap,
				Next: "Both",
				Iterator: &Definition{
					StartAt: "Pull",
					States: map[string]*State{
						"Pull": {Type: StateTypeTask, Resource: "pull-schema", End: true},
					},
				},
			},
			"Both": {
				Type: StateTypeParallel,
				End:  true,
				Branches: []*Definition{
					{StartAt: "A", States: map[string]*State{"A": {Type: StateTypeTask, Resource: "list-objects", End: true}}},
					{StartAt: "B", States: map[string]*State{"B": {Type: StateTypeWait, Seconds: 1, End: true}}},
				},
			},
		},
	}

	assert.Equal(t, []string{"list-objects", "pull-schema"}, definition.Resources())
	assert.Equal(t, []string{"describe-job-execution"}, pollingDefinition().Resources())
}
