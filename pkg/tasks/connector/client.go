// Package connector talks to the connector service that owns the Salesforce
// flows: schema pulls, flow updates, job runs and entity listings.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
	"golang.org/x/time/rate"
)

// StatusNotStarted is reported for a flow without any execution record yet.
const StatusNotStarted = "NotStarted"

const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 5
)

var ErrMissingBaseURL = errors.New("connector base URL is required")

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RequestsPerSecond limits the request rate of the client; zero means
	// DefaultRequestsPerSecond.
	RequestsPerSecond float64
	Burst             int
}

type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid connector base URL: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// HTTPError is a non 2xx answer of the connector service.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// classifyStatus maps a connector answer to the failure kind the workflow
// retries on.
func classifyStatus(err *HTTPError) *protocol.TaskError {
	switch {
	case err.StatusCode == http.StatusTooManyRequests:
		return protocol.ResourceExhausted(err)
	case err.StatusCode == http.StatusBadGateway,
		err.StatusCode == http.StatusServiceUnavailable,
		err.StatusCode == http.StatusGatewayTimeout:
		return protocol.Transient(err)
	case err.StatusCode == http.StatusRequestTimeout:
		return protocol.ClientTimeout(err)
	case err.StatusCode >= http.StatusInternalServerError:
		return protocol.ConnectorServerError(err)
	default:
		return protocol.DomainInvalid(err)
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	err := c.limiter.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return protocol.ResourceExhausted(fmt.Errorf("rate limit: %w", err))
	}

	var reqBody io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return protocol.DomainInvalid(fmt.Errorf("failed to encode request: %w", err))
		}

		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL.JoinPath(path)
	if query != nil {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return protocol.DomainInvalid(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return classifyStatus(&HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		})
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return protocol.ConnectorServerError(fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("connector request: %w", ctx.Err())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return protocol.ClientTimeout(err)
	}

	return protocol.Transient(err)
}

// PullSchema asks the connector to refresh the schema of entity from the
// metadata object at key and returns the new schema reference.
func (c *Client) PullSchema(ctx context.Context, entity, key string) (string, error) {
	var out struct {
		SchemaRef string `json:"schemaRef"`
	}

	err := c.do(ctx, http.MethodPost, "/v1/entities/"+url.PathEscape(entity)+"/schema/pull", nil,
		map[string]any{"key": key}, &out)
	if err != nil {
		return "", err
	}

	return out.SchemaRef, nil
}

type FlowRef struct {
	FlowName string `json:"flowName"`
	Entity   string `json:"entity"`
}

// UpdateFlow points flowName at the schema schemaRef of entity.
func (c *Client) UpdateFlow(ctx context.Context, flowName, entity, schemaRef string) (*FlowRef, error) {
	out := &FlowRef{}

	err := c.do(ctx, http.MethodPut, "/v1/flows/"+url.PathEscape(flowName), nil,
		map[string]any{"entity": entity, "schemaRef": schemaRef}, out)
	if err != nil {
		return nil, err
	}

	if out.FlowName == "" {
		out.FlowName = flowName
	}

	if out.Entity == "" {
		out.Entity = entity
	}

	return out, nil
}

// StartJob starts the import job of flowName and returns its execution id.
func (c *Client) StartJob(ctx context.Context, flowName string) (string, error) {
	var out struct {
		ExecutionID string `json:"executionId"`
	}

	err := c.do(ctx, http.MethodPost, "/v1/flows/"+url.PathEscape(flowName)+"/start", nil, nil, &out)
	if err != nil {
		return "", err
	}

	return out.ExecutionID, nil
}

// LatestExecution returns the most recent execution record of flowName, or a
// record with StatusNotStarted when the flow never ran.
func (c *Client) LatestExecution(ctx context.Context, flowName string) (*models.JobExecution, error) {
	var out struct {
		Executions []models.JobExecution `json:"executions"`
	}

	err := c.do(ctx, http.MethodGet, "/v1/flows/"+url.PathEscape(flowName)+"/executions",
		url.Values{"maxResults": []string{"1"}}, nil, &out)
	if err != nil {
		return nil, err
	}

	if len(out.Executions) == 0 {
		return &models.JobExecution{Status: StatusNotStarted}, nil
	}

	return &out.Executions[0], nil
}

// Entities lists the entities exposed by the connection.
func (c *Client) Entities(ctx context.Context) ([]models.EntityRef, error) {
	var out struct {
		Entities []models.EntityRef `json:"entities"`
	}

	err := c.do(ctx, http.MethodGet, "/v1/entities", nil, nil, &out)
	if err != nil {
		return nil, err
	}

	if out.Entities == nil {
		out.Entities = []models.EntityRef{}
	}

	return out.Entities, nil
}
