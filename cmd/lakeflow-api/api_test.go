package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/lakeflow/pkg/cmd"
	"github.com/dukex/lakeflow/pkg/events"
	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/persistence/memory"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *services.Run) {
	t.Helper()

	p, err := memory.NewPersistence()
	require.NoError(t, err)

	bus := cmd.NewEventBus("gochannel", nil, "lakeflow-api-test", log.Discard())
	t.Cleanup(func() { _ = bus.Close() })

	reg := registry.NewRegistry(log.Discard())
	reg.Register("echo", protocol.TaskFunc(func(_ context.Context, input any) (any, error) {
		return map[string]any{"echoed": input}, nil
	}))

	definition := &models.Definition{
		StartAt: "Echo",
		States: map[string]*models.State{
			"Echo": {Type: models.StateTypeTask, Resource: "echo", End: true},
		},
	}

	service := services.NewRun(p, bus, reg, definition, log.Discard())

	require.NoError(t, bus.Handle(events.RunRequestedEvent, service.HandleRunRequested))
	require.NoError(t, bus.Subscribe(t.Context()))

	return NewAPI(log.Discard(), service, reg).App(), service
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := get(t, app, "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "lakeflow API", string(body))
}

func TestAPI_HealthChecks(t *testing.T) {
	app, _ := setupTestApp(t)

	for _, target := range []string{"/livez", "/readyz", "/health"} {
		status, _ := get(t, app, target)
		assert.Equal(t, http.StatusOK, status, target)
	}
}

func TestAPI_RequestedRunIsExecuted(t *testing.T) {
	app, service := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader([]byte(`{"input":{"entity":"Account"}}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created models.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, models.RunStatusPending, created.Status)

	assert.Eventually(t, func() bool {
		run, err := service.Get(context.Background(), created.ID)

		return err == nil && run.Status == models.RunStatusSucceeded
	}, 5*time.Second, 20*time.Millisecond)

	status, body := get(t, app, "/runs/"+created.ID)
	require.Equal(t, http.StatusOK, status)

	var run models.Run
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, map[string]any{"echoed": map[string]any{"entity": "Account"}}, run.Output)
}
