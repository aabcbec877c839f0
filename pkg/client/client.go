// Package client talks to the Orderflow REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/services"
	"github.com/moogar0880/problems"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer decoded from its problem document.
type APIError struct {
	Status int
	Type   string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orderflow api: %d %s: %s", e.Status, e.Type, e.Detail)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc

	return c
}

func (c *Client) CreateWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	var out models.WorkflowDefinition

	return &out, c.do(ctx, http.MethodPost, "/workflows", workflow, &out)
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	var out models.WorkflowDefinition

	return &out, c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil, &out)
}

func (c *Client) UpdateWorkflow(ctx context.Context, id string, workflow *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	var out models.WorkflowDefinition

	return &out, c.do(ctx, http.MethodPut, "/workflows/"+url.PathEscape(id), workflow, &out)
}

func (c *Client) SetActive(ctx context.Context, id string, active bool) (*models.WorkflowDefinition, error) {
	var out models.WorkflowDefinition

	body := map[string]bool{"isActive": active}

	return &out, c.do(ctx, http.MethodPatch, "/workflows/"+url.PathEscape(id)+"/status", body, &out)
}

func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workflows/"+url.PathEscape(id), nil, nil)
}

// Execute starts a manual run and returns the execution id.
func (c *Client) Execute(ctx context.Context, workflowID string, input map[string]any) (string, error) {
	var out struct {
		ExecutionID string `json:"executionId"`
	}

	body := map[string]any{"input": input}

	if err := c.do(ctx, http.MethodPost, "/workflows/"+url.PathEscape(workflowID)+"/execute", body, &out); err != nil {
		return "", err
	}

	return out.ExecutionID, nil
}

func (c *Client) ListExecutions(ctx context.Context, workflowID string, page, limit int) (*services.ListExecutionsResponse, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}

	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	path := "/workflows/" + url.PathEscape(workflowID) + "/executions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var out services.ListExecutionsResponse

	return &out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var out models.WorkflowExecution

	return &out, c.do(ctx, http.MethodGet, "/executions/"+url.PathEscape(id), nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeProblem(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func decodeProblem(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}

	var problem problems.DefaultProblem
	if err := json.NewDecoder(resp.Body).Decode(&problem); err == nil {
		apiErr.Type = problem.Type

		if problem.Detail != "" {
			apiErr.Detail = problem.Detail
		}
	}

	return apiErr
}
