package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
import:
  schemaChangeConcurrency: 10
  importConcurrency: 3
  connectionName: crm
  terminalJobStatuses: [Successful, Error, Canceled]
  retry:
    intervalSeconds: 1
    maxAttempts: 3
    backoffRate: 1.5
`))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.SchemaChangeConcurrency)
	assert.Equal(t, 3, cfg.ImportConcurrency)
	assert.Equal(t, "crm", cfg.ConnectionName)
	assert.Equal(t, []string{"Successful", "Error", "Canceled"}, cfg.TerminalJobStatuses)
	assert.Equal(t, importflow.RetryConfig{IntervalSeconds: 1, MaxAttempts: 3, BackoffRate: 1.5}, cfg.Retry)

	assert.Equal(t, importflow.DefaultTimeoutSeconds, cfg.TimeoutSeconds)
	assert.Equal(t, importflow.DefaultMetadataPrefix, cfg.MetadataPrefix)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, importflow.DefaultConfig(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown_field", data: "import:\n  concurrency: 3\n"},
		{name: "out_of_range", data: "import:\n  importConcurrency: 31\n"},
		{name: "malformed", data: "import: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lakeflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("import:\n  pollSeconds: 30\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 30, cfg.PollSeconds, 0)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, importflow.DefaultConfig(), cfg)
}

func TestParseFile_Schedule(t *testing.T) {
	file, err := ParseFile([]byte(`
schedule:
  cron: "30 1 * * *"
  enabled: true
  timezone: America/Sao_Paulo
  input:
    source: nightly
`))
	require.NoError(t, err)

	assert.Equal(t, "30 1 * * *", file.Schedule.Cron)
	assert.True(t, file.Schedule.Enabled)
	assert.Equal(t, "America/Sao_Paulo", file.Schedule.Timezone)
	assert.Equal(t, map[string]any{"source": "nightly"}, file.Schedule.Input)
	assert.Equal(t, importflow.DefaultConfig(), file.Import)

	_, err = ParseFile([]byte("schedule:\n  cron: nope\n"))
	assert.Error(t, err)

	file, err = LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, scheduler.DefaultConfig(), file.Schedule)
	assert.False(t, file.Schedule.Enabled)
}
