package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPersistenceSuite checks the behaviour every persistence backend shares.
// newPersistence must return an empty store.
func RunPersistenceSuite(t *testing.T, newPersistence func(t *testing.T) persistence.Persistence) {
	t.Helper()

	ctx := context.Background()

	t.Run("health check", func(t *testing.T) {
		p := newPersistence(t)

		assert.NoError(t, p.HealthCheck(ctx))
	})

	t.Run("save and retrieve run", func(t *testing.T) {
		p := newPersistence(t)

		run := CreateTestRun()
		require.NoError(t, p.SaveRun(ctx, run))

		got, err := p.RunByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, run.ExecutionName, got.ExecutionName)
		assert.Equal(t, models.RunStatusPending, got.Status)
		assert.Equal(t, run.Input, got.Input)
		assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.StartedAt)
		assert.Nil(t, got.FinishedAt)
	})

	t.Run("save replaces run", func(t *testing.T) {
		p := newPersistence(t)

		run := CreateTestRun()
		require.NoError(t, p.SaveRun(ctx, run))

		finished := CreateTestRun(func(r *models.Run) { r.ID = run.ID; r.ExecutionName = run.ID; r.CreatedAt = run.CreatedAt },
			WithRunFinished(models.RunStatusFailed, nil, "ExhaustedRetries: pull-schema"))
		finished.ErrorKind = string(models.ErrorKindConnectorServerError)
		require.NoError(t, p.SaveRun(ctx, finished))

		got, err := p.RunByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusFailed, got.Status)
		assert.Equal(t, "ExhaustedRetries: pull-schema", got.Error)
		assert.Equal(t, "connector-server-error", got.ErrorKind)
		require.NotNil(t, got.FinishedAt)
		assert.True(t, finished.FinishedAt.Equal(*got.FinishedAt))

		runs, err := p.Runs(ctx)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("run output survives", func(t *testing.T) {
		p := newPersistence(t)

		run := CreateTestRun(WithRunFinished(models.RunStatusSucceeded, map[string]any{"dropped": []any{"account__staging"}}, ""))
		require.NoError(t, p.SaveRun(ctx, run))

		got, err := p.RunByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"dropped": []any{"account__staging"}}, got.Output)
	})

	t.Run("unknown run", func(t *testing.T) {
		p := newPersistence(t)

		_, err := p.RunByID(ctx, "missing")
		require.Error(t, err)
		assert.True(t, persistence.IsRunNotFound(err))
	})

	t.Run("invalid run", func(t *testing.T) {
		p := newPersistence(t)

		err := p.SaveRun(ctx, &models.Run{})
		assert.ErrorIs(t, err, persistence.ErrInvalidRun)
	})

	t.Run("runs newest first", func(t *testing.T) {
		p := newPersistence(t)

		base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		older := CreateTestRun(WithRunCreatedAt(base))
		newer := CreateTestRun(WithRunCreatedAt(base.Add(time.Hour)))

		require.NoError(t, p.SaveRun(ctx, older))
		require.NoError(t, p.SaveRun(ctx, newer))

		runs, err := p.Runs(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, newer.ID, runs[0].ID)
		assert.Equal(t, older.ID, runs[1].ID)
	})

	t.Run("status reports in reporting order", func(t *testing.T) {
		p := newPersistence(t)

		base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		begin := CreateTestStatusReport("run-1", models.ImportStageBegin, WithReportedAt(base.Add(time.Minute)))
		prepare := CreateTestStatusReport("run-1", models.ImportStagePrepare, WithReportedAt(base),
			func(r *models.StatusReport) { r.Detail = map[string]any{"object": map[string]any{"key": "schemas/Account.json"}} })
		other := CreateTestStatusReport("run-2", models.ImportStagePrepare, WithReportedAt(base))

		for _, report := range []*models.StatusReport{begin, prepare, other} {
			require.NoError(t, p.SaveStatusReport(ctx, report))
		}

		reports, err := p.StatusReports(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, models.ImportStagePrepare, reports[0].Stage)
		assert.Equal(t, models.ImportStageBegin, reports[1].Stage)
		assert.Equal(t, prepare.Detail, reports[0].Detail)
		assert.True(t, base.Equal(reports[0].ReportedAt))

		reports, err = p.StatusReports(ctx, "run-3")
		require.NoError(t, err)
		assert.Empty(t, reports)
	})

	t.Run("invalid status report", func(t *testing.T) {
		p := newPersistence(t)

		err := p.SaveStatusReport(ctx, &models.StatusReport{ID: "r1"})
		assert.ErrorIs(t, err, persistence.ErrInvalidStatusReport)
	})
}
