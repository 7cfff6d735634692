package cmd

import (
	"context"
	"testing"

	"github.com/dukex/lakeflow/pkg/importflow"
	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/persistence/file"
	"github.com/dukex/lakeflow/pkg/persistence/memory"
	"github.com/dukex/lakeflow/pkg/persistence/sqlite"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/tasks/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"postgres://user@localhost/db":   "postgres",
		"postgresql://user@localhost/db": "postgresql",
		"sqlite://lakeflow.db":           "sqlite",
		"memory://":                      "memory",
		"file:///var/lib/lakeflow":       "file",
		"./data":                         "file",
		"mysql://localhost":              "file",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence(t *testing.T) {
	ctx := context.Background()

	assert.IsType(t, &memory.Persistence{}, NewPersistence(ctx, log.Discard(), "memory://"))
	assert.IsType(t, &file.Persistence{}, NewPersistence(ctx, log.Discard(), "file://"+t.TempDir()))

	p := NewPersistence(ctx, log.Discard(), "sqlite://:memory:")
	assert.IsType(t, &sqlite.Persistence{}, p)
	assert.NoError(t, p.Close(ctx))
}

func TestNewEventBus(t *testing.T) {
	bus := NewEventBus("gochannel", nil, "test", log.Discard())
	require.NotNil(t, bus)
	assert.NoError(t, bus.Close())

	assert.Panics(t, func() { NewEventBus("nats", nil, "test", log.Discard()) })
	assert.Panics(t, func() { NewEventBus("kafka", nil, "test", log.Discard()) })
}

func TestNewRegistry_BindsConfiguredTasks(t *testing.T) {
	ctx := context.Background()

	reports, err := memory.NewPersistence()
	require.NoError(t, err)

	reg, closeAll := NewRegistry(ctx, log.Discard(), Adapters{
		MetadataRoot: t.TempDir(),
		Connector:    connector.Config{BaseURL: "http://connector.invalid"},
		Reports:      reports,
	})
	defer func() { assert.NoError(t, closeAll()) }()

	ids := make([]string, 0)
	for _, factory := range reg.Factories() {
		ids = append(ids, factory.ID())
	}

	assert.ElementsMatch(t, importflow.Resources(), ids)

	for _, id := range []string{
		importflow.ResourceListObjects,
		importflow.ResourceFilterObjects,
		importflow.ResourceReportStatus,
		importflow.ResourcePullSchema,
		importflow.ResourceListEntities,
	} {
		_, err := reg.Task(id)
		assert.NoError(t, err, id)
	}

	_, err = reg.Task(importflow.ResourcePrepareStagingTable)
	assert.ErrorIs(t, err, registry.ErrTaskNotBound)

	_, err = reg.Task(importflow.ResourceGetQueueSnapshot)
	assert.ErrorIs(t, err, registry.ErrTaskNotBound)
}
