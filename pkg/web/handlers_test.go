package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/mocks"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence"
	"github.com/dukex/lakeflow/pkg/persistence/memory"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/services"
	"github.com/dukex/lakeflow/pkg/tasks/objects"
	"github.com/dukex/lakeflow/pkg/testutil"
	"github.com/dukex/lakeflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence, *mocks.MockEventBus) {
	t.Helper()

	p, err := memory.NewPersistence()
	require.NoError(t, err)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reg := registry.NewRegistry(log.Discard())
	reg.RegisterTask(objects.NewFilterObjectsFactory())
	reg.Register("noop", protocol.TaskFunc(func(_ context.Context, input any) (any, error) { return input, nil }))

	definition := &models.Definition{
		StartAt: "Noop",
		States: map[string]*models.State{
			"Noop": {Type: models.StateTypeTask, Resource: "noop", End: true},
		},
	}

	service := services.NewRun(p, bus, reg, definition, log.Discard())

	app := fiber.New()
	web.NewAPIHandlers(service, reg).Routes(app)

	return app, p, bus
}

func do(t *testing.T, app *fiber.App, method, target string, body []byte) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func TestAPIHandlers_CreateRun(t *testing.T) {
	tests := []struct {
		name           string
		body           []byte
		expectedStatus int
		expectedType   string
		trigger        string
	}{
		{
			name:           "with body",
			body:           []byte(`{"trigger":"manual","input":{"entity":"Account"}}`),
			expectedStatus: http.StatusAccepted,
			trigger:        "manual",
		},
		{
			name:           "without body",
			expectedStatus: http.StatusAccepted,
			trigger:        "api",
		},
		{
			name:           "invalid json",
			body:           []byte(`{"trigger":`),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, p, bus := setupTestApp(t)

			status, body := do(t, app, http.MethodPost, "/runs", tt.body)
			assert.Equal(t, tt.expectedStatus, status)

			if tt.expectedType != "" {
				var problem map[string]any
				require.NoError(t, json.Unmarshal(body, &problem))
				assert.Equal(t, tt.expectedType, problem["type"])
				bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

				return
			}

			var run models.Run
			require.NoError(t, json.Unmarshal(body, &run))
			assert.Equal(t, models.RunStatusPending, run.Status)
			assert.Equal(t, tt.trigger, run.Trigger)

			stored, err := p.RunByID(t.Context(), run.ID)
			require.NoError(t, err)
			assert.Equal(t, models.RunStatusPending, stored.Status)
			bus.AssertNumberOfCalls(t, "Publish", 1)
		})
	}
}

func TestAPIHandlers_GetRun(t *testing.T) {
	app, p, _ := setupTestApp(t)

	run := testutil.CreateTestRun()
	require.NoError(t, p.SaveRun(t.Context(), run))

	status, body := do(t, app, http.MethodGet, "/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var got models.Run
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, run.ID, got.ID)

	status, body = do(t, app, http.MethodGet, "/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "run_not_found", problem["type"])
}

func TestAPIHandlers_GetRuns(t *testing.T) {
	app, p, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	require.NoError(t, p.SaveRun(t.Context(), testutil.CreateTestRun()))
	require.NoError(t, p.SaveRun(t.Context(), testutil.CreateTestRun()))

	status, body = do(t, app, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, status)

	var runs []models.Run
	require.NoError(t, json.Unmarshal(body, &runs))
	assert.Len(t, runs, 2)
}

func TestAPIHandlers_GetRunStatusReports(t *testing.T) {
	app, p, _ := setupTestApp(t)

	run := testutil.CreateTestRun()
	require.NoError(t, p.SaveRun(t.Context(), run))
	require.NoError(t, p.SaveStatusReport(t.Context(), testutil.CreateTestStatusReport(run.ExecutionName, models.ImportStageBegin)))

	status, body := do(t, app, http.MethodGet, "/runs/"+run.ID+"/status-reports", nil)
	require.Equal(t, http.StatusOK, status)

	var resp web.StatusReportsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, run.ID, resp.RunID)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, models.ImportStageBegin, resp.Reports[0].Stage)

	status, _ = do(t, app, http.MethodGet, "/runs/missing/status-reports", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_DefinitionAndTasks(t *testing.T) {
	app, _, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/definition", nil)
	require.Equal(t, http.StatusOK, status)

	definition, err := models.ParseDefinition(body)
	require.NoError(t, err)
	assert.Equal(t, "Noop", definition.StartAt)

	status, body = do(t, app, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, status)

	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(body, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "filter-objects", tasks[0]["id"])
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _, _ := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}
