package staging_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/tasks/staging"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

// setupStore returns a store on a schema of its own, so tests never see each
// other's tables.
func setupStore(t *testing.T) (*staging.Store, *sql.DB, string, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("lakeflow_test"),
			postgres.WithUsername("lakeflow"),
			postgres.WithPassword("lakeflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	store, err := staging.Open(ctx, log.Discard(), databaseURL, schema)
	require.NoError(t, err)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE")

		require.NoError(t, db.Close())
		require.NoError(t, store.Close())

		cancel()
	})

	return store, db, schema, ctx
}

func tableExists(ctx context.Context, t *testing.T, db *sql.DB, schema, table string) bool {
	t.Helper()

	var exists bool

	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		schema, table,
	).Scan(&exists)
	require.NoError(t, err)

	return exists
}

func TestStore_PrepareSwapDrop(t *testing.T) {
	store, db, schema, ctx := setupStore(t)

	table, err := store.Prepare(ctx, "Account")
	require.NoError(t, err)
	assert.Equal(t, "account__staging", table)
	assert.True(t, tableExists(ctx, t, db, schema, "account"))
	assert.True(t, tableExists(ctx, t, db, schema, "account__staging"))

	_, err = db.ExecContext(ctx, `INSERT INTO `+schema+`.account__staging (id, payload) VALUES ('001', '{"Name":"Acme"}')`)
	require.NoError(t, err)

	swapped, err := store.Swap(ctx, "Account")
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.False(t, tableExists(ctx, t, db, schema, "account__staging"))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+schema+`.account`).Scan(&count))
	assert.Equal(t, 1, count)

	// A second import starts from an empty staging table shaped like the live one.
	_, err = store.Prepare(ctx, "Account")
	require.NoError(t, err)
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+schema+`.account__staging`).Scan(&count))
	assert.Zero(t, count)

	dropped, err := store.Drop(ctx, []string{"Account", "Contact"})
	require.NoError(t, err)
	assert.Equal(t, []string{"account__staging"}, dropped)
	assert.True(t, tableExists(ctx, t, db, schema, "account"))
}

func TestStore_SwapWithoutStaging(t *testing.T) {
	store, _, _, ctx := setupStore(t)

	swapped, err := store.Swap(ctx, "Lead")
	require.NoError(t, err)
	assert.False(t, swapped)
}

func TestFactories_ThroughRegistry(t *testing.T) {
	store, db, schema, ctx := setupStore(t)

	r := registry.NewRegistry(log.Discard())
	for _, factory := range staging.Factories(store) {
		r.RegisterTask(factory)
		require.NoError(t, r.Bind(factory.ID(), nil))
	}

	invoke := func(id string, input map[string]any) map[string]any {
		task, err := r.Task(id)
		require.NoError(t, err)

		out, err := task.Invoke(ctx, input)
		require.NoError(t, err)

		return out.(map[string]any)
	}

	out := invoke("prepare-staging-table", map[string]any{"entity": "Contact", "flowName": "salesforce-Contact"})
	assert.Equal(t, "contact__staging", out["table"])

	out = invoke("cleanup-staging", map[string]any{"entity": "Contact", "key": "schemas/Contact.json"})
	assert.Equal(t, true, out["swapped"])
	assert.True(t, tableExists(ctx, t, db, schema, "contact"))

	invoke("prepare-staging-table", map[string]any{"entity": "Contact"})

	out = invoke("finalize-staging", map[string]any{"entities": []any{
		map[string]any{"name": "Contact", "label": "Contact"},
	}})
	assert.Equal(t, []string{"contact__staging"}, out["dropped"])

	task, err := r.Task("prepare-staging-table")
	require.NoError(t, err)

	_, err = task.Invoke(ctx, map[string]any{"entity": ""})
	require.Error(t, err)
	assert.Equal(t, "domain-invalid", string(protocol.Classify(err).Kind))
}
