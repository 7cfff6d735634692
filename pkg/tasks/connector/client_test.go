package connector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/lakeflow/pkg/log"
	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
	"github.com/dukex/lakeflow/pkg/registry"
	"github.com/dukex/lakeflow/pkg/tasks/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.Handler) *connector.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := connector.NewClient(connector.Config{
		BaseURL:           server.URL,
		Token:             "secret",
		Timeout:           time.Second,
		RequestsPerSecond: 1000,
		Burst:             100,
	})
	require.NoError(t, err)

	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClient_Operations(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/entities/{entity}/schema/pull", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "schemas/Account.json", body["key"])

		writeJSON(t, w, map[string]string{"schemaRef": "refs/" + r.PathValue("entity")})
	})
	mux.HandleFunc("PUT /v1/flows/{flow}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, map[string]string{"flowName": r.PathValue("flow"), "entity": body["entity"]})
	})
	mux.HandleFunc("POST /v1/flows/{flow}/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"executionId": "exec-" + r.PathValue("flow")})
	})
	mux.HandleFunc("GET /v1/flows/{flow}/executions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))

		if r.PathValue("flow") == "salesforce-Empty" {
			writeJSON(t, w, map[string]any{"executions": []any{}})

			return
		}

		writeJSON(t, w, map[string]any{"executions": []any{
			map[string]any{"executionId": "exec-1", "status": "InProgress", "recordsRead": 42},
		}})
	})
	mux.HandleFunc("GET /v1/entities", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"entities": []any{map[string]string{"name": "Account", "label": "Account"}}})
	})

	client := newClient(t, mux)
	ctx := context.Background()

	ref, err := client.PullSchema(ctx, "Account", "schemas/Account.json")
	require.NoError(t, err)
	assert.Equal(t, "refs/Account", ref)

	flow, err := client.UpdateFlow(ctx, "salesforce-Account", "Account", ref)
	require.NoError(t, err)
	assert.Equal(t, &connector.FlowRef{FlowName: "salesforce-Account", Entity: "Account"}, flow)

	id, err := client.StartJob(ctx, "salesforce-Account")
	require.NoError(t, err)
	assert.Equal(t, "exec-salesforce-Account", id)

	execution, err := client.LatestExecution(ctx, "salesforce-Account")
	require.NoError(t, err)
	assert.Equal(t, "InProgress", execution.Status)
	assert.Equal(t, int64(42), execution.RecordsRead)

	execution, err = client.LatestExecution(ctx, "salesforce-Empty")
	require.NoError(t, err)
	assert.Equal(t, connector.StatusNotStarted, execution.Status)

	entities, err := client.Entities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.EntityRef{{Name: "Account", Label: "Account"}}, entities)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   models.ErrorKind
	}{
		{http.StatusTooManyRequests, models.ErrorKindResourceExhausted},
		{http.StatusBadGateway, models.ErrorKindTransientService},
		{http.StatusServiceUnavailable, models.ErrorKindTransientService},
		{http.StatusGatewayTimeout, models.ErrorKindTransientService},
		{http.StatusInternalServerError, models.ErrorKindConnectorServerError},
		{http.StatusNotImplemented, models.ErrorKindConnectorServerError},
		{http.StatusRequestTimeout, models.ErrorKindClientTimeout},
		{http.StatusNotFound, models.ErrorKindDomainInvalid},
		{http.StatusBadRequest, models.ErrorKindDomainInvalid},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))

			_, err := client.StartJob(context.Background(), "salesforce-Account")
			require.Error(t, err)

			classified := protocol.Classify(err)
			assert.Equal(t, tt.want, classified.Kind)

			var httpErr *connector.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
		})
	}
}

func TestClient_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)

	client, err := connector.NewClient(connector.Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Entities(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindClientTimeout, protocol.Classify(err).Kind)
}

func TestClient_ConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := connector.NewClient(connector.Config{BaseURL: url})
	require.NoError(t, err)

	_, err = client.Entities(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTransientService, protocol.Classify(err).Kind)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := connector.NewClient(connector.Config{})
	assert.ErrorIs(t, err, connector.ErrMissingBaseURL)
}

func TestFactories_ThroughRegistry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/flows/{flow}/executions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"executions": []any{
			map[string]any{"executionId": "exec-1", "status": "Successful"},
		}})
	})

	client := newClient(t, mux)

	r := registry.NewRegistry(log.Discard())
	for _, factory := range connector.Factories(client) {
		r.RegisterTask(factory)
		require.NoError(t, r.Bind(factory.ID(), nil))
	}

	describe, err := r.Task("describe-job-execution")
	require.NoError(t, err)

	out, err := describe.Invoke(context.Background(), map[string]any{"flowName": "salesforce-Account"})
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, "Successful", result["status"])
	assert.Equal(t, "exec-1", result["record"].(*models.JobExecution).ExecutionID)

	// Input that misses a required field never reaches the connector.
	pull, err := r.Task("pull-schema")
	require.NoError(t, err)

	_, err = pull.Invoke(context.Background(), map[string]any{"entity": "Account"})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindDomainInvalid, protocol.Classify(err).Kind)

	_, err = connector.Factories(nil)[0].Create(nil)
	assert.ErrorIs(t, err, connector.ErrNoClient)
}
