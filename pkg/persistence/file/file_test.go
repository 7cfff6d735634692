package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
	"github.com/dukex/lakeflow/pkg/persistence/file"
	"github.com/dukex/lakeflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence(t *testing.T) {
	testutil.RunPersistenceSuite(t, func(t *testing.T) persistence.Persistence {
		return file.NewPersistence(t.TempDir())
	})
}

func TestPersistence_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := file.NewPersistence("file://" + root)

	run := testutil.CreateTestRun()
	require.NoError(t, p.SaveRun(ctx, run))

	report := testutil.CreateTestStatusReport(run.ExecutionName, models.ImportStagePrepare)
	require.NoError(t, p.SaveStatusReport(ctx, report))

	assert.FileExists(t, filepath.Join(root, "runs", run.ID+".json"))
	assert.FileExists(t, filepath.Join(root, "status_reports", run.ExecutionName, report.ID+".json"))

	entries, err := os.ReadDir(filepath.Join(root, "runs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestPersistence_RejectsPathIDs(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	run := testutil.CreateTestRun(func(r *models.Run) { r.ID = "../escape" })
	assert.ErrorIs(t, p.SaveRun(ctx, run), persistence.ErrInvalidRun)

	_, err := p.RunByID(ctx, "../escape")
	assert.True(t, persistence.IsRunNotFound(err))

	report := testutil.CreateTestStatusReport("a/b", models.ImportStageBegin)
	assert.ErrorIs(t, p.SaveStatusReport(ctx, report), persistence.ErrInvalidStatusReport)
}

func TestPersistence_HealthCheck(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, file.NewPersistence(t.TempDir()).HealthCheck(ctx))
	assert.Error(t, file.NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(ctx))
}
