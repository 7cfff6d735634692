package memory_test

import (
	"context"
	"testing"

	"github.com/dukex/lakeflow/pkg/persistence"
	"github.com/dukex/lakeflow/pkg/persistence/memory"
	"github.com/dukex/lakeflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	p, err := memory.NewPersistence()
	require.NoError(t, err)

	return p
}

func TestPersistence(t *testing.T) {
	testutil.RunPersistenceSuite(t, newPersistence)
}

func TestPersistence_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	p := newPersistence(t)

	run := testutil.CreateTestRun()
	require.NoError(t, p.SaveRun(ctx, run))

	run.Input["source"] = "changed"

	got, err := p.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "test", got.Input["source"])

	got.Input["source"] = "changed again"

	again, err := p.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "test", again.Input["source"])
}
