package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		path    string
		want    []string
		wantErr bool
	}{
		{path: "$", want: nil},
		{path: "", want: nil},
		{path: "$.contents", want: []string{"contents"}},
		{path: "$.result.flowStatus", want: []string{"result", "flowStatus"}},
		{path: "$.executions[0].status", want: []string{"executions", "0", "status"}},
		{path: "$[2]", want: []string{"2"}},
		{path: "contents", wantErr: true},
		{path: "$.", wantErr: true},
		{path: "$.a[x]", wantErr: true},
		{path: "$.a[1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Tokens(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPointer_Escapes(t *testing.T) {
	pointer, err := Pointer("$.a/b.c~d")
	require.NoError(t, err)
	assert.Equal(t, "/a~1b/c~0d", pointer)
}

func TestGet(t *testing.T) {
	doc, err := Normalize(map[string]any{
		"flowName": "sf-account",
		"executions": []map[string]any{
			{"status": "InProgress"},
		},
	})
	require.NoError(t, err)

	value, err := Get(doc, "$.executions[0].status")
	require.NoError(t, err)
	assert.Equal(t, "InProgress", value)

	whole, err := Get(doc, "$")
	require.NoError(t, err)
	assert.Equal(t, doc, whole)

	_, err = Get(doc, "$.missing")
	require.ErrorIs(t, err, ErrNoMatch)

	_, ok := Lookup(doc, "$.executions[3].status")
	assert.False(t, ok)
}

func TestSet_CreatesParentsWithoutMutatingInput(t *testing.T) {
	input := map[string]any{"flowName": "sf-account"}

	out, err := Set(input, "$.result.flowStatus", "Successful")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"flowName": "sf-account",
		"result":   map[string]any{"flowStatus": "Successful"},
	}, out)
	assert.NotContains(t, input, "result")
}

func TestSet_Root(t *testing.T) {
	out, err := Set(map[string]any{"a": 1.0}, "$", []any{"x"})
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, out)
}

func TestSet_OnNonObject(t *testing.T) {
	_, err := Set([]any{1.0}, "$.a", 2.0)
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestMerge(t *testing.T) {
	state := map[string]any{"entity": "Account", "flowName": "sf-account"}

	merged := Merge(state, map[string]any{"flowName": "sf-account-v2", "schemaRef": "s3://x"})
	assert.Equal(t, map[string]any{
		"entity":    "Account",
		"flowName":  "sf-account-v2",
		"schemaRef": "s3://x",
	}, merged)
	assert.Equal(t, "sf-account", state["flowName"])

	assert.Equal(t, []any{"a"}, Merge(state, []any{"a"}))
	assert.Equal(t, map[string]any{"x": 1.0}, Merge([]any{}, map[string]any{"x": 1.0}))
}

func TestResolve(t *testing.T) {
	input := map[string]any{
		"key":    "schemas/Account.json",
		"entity": "Account",
	}
	contextObject := map[string]any{
		"Execution": map[string]any{"Name": "exec-1"},
	}

	template := map[string]any{
		"object.$":      "$",
		"executionId.$": "$$.Execution.Name",
		"importStage":   "PREPARE",
		"nested": map[string]any{
			"entity.$": "$.entity",
			"tags":     []any{"a", map[string]any{"key.$": "$.key"}},
		},
	}

	out, err := Resolve(template, input, contextObject)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"object":      input,
		"executionId": "exec-1",
		"importStage": "PREPARE",
		"nested": map[string]any{
			"entity": "Account",
			"tags":   []any{"a", map[string]any{"key": "schemas/Account.json"}},
		},
	}, out)
}

func TestResolve_Errors(t *testing.T) {
	_, err := Resolve(map[string]any{"x.$": 3}, nil, nil)
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = Resolve(map[string]any{"x.$": "$.missing"}, map[string]any{}, nil)
	require.ErrorIs(t, err, ErrNoMatch)
}
