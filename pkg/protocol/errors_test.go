package protocol

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want models.ErrorKind
	}{
		{"task error", ConnectorServerError(boom), models.ErrorKindConnectorServerError},
		{"wrapped task error", fmt.Errorf("pull: %w", ResourceExhausted(boom)), models.ErrorKindResourceExhausted},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), models.ErrorKindClientTimeout},
		{"net timeout", timeoutErr{}, models.ErrorKindClientTimeout},
		{"plain", boom, models.ErrorKindDomainInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.want, classified.Kind)
			assert.True(t, errors.Is(tt.err, classified) || errors.Is(classified, tt.err))
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestTaskFunc(t *testing.T) {
	task := TaskFunc(func(_ context.Context, input any) (any, error) {
		return input, nil
	})

	out, err := task.Invoke(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestDecodeInput(t *testing.T) {
	type pull struct {
		Entity string `json:"entity"`
		Key    string `json:"key"`
	}

	got, err := DecodeInput[pull](map[string]any{"entity": "Account", "key": "schemas/Account.json", "extra": 1.0})
	require.NoError(t, err)
	assert.Equal(t, pull{Entity: "Account", Key: "schemas/Account.json"}, got)

	_, err = DecodeInput[pull](map[string]any{"entity": 42.0})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindDomainInvalid, Classify(err).Kind)
}
