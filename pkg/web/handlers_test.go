package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/catalog/builtin"
	"github.com/dukex/orderflow/pkg/engine"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/notify"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/persistence/file"
	"github.com/dukex/orderflow/pkg/records"
	"github.com/dukex/orderflow/pkg/services"
	"github.com/dukex/orderflow/pkg/tracker"
	"github.com/dukex/orderflow/pkg/validation"
	"github.com/dukex/orderflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	app       *fiber.App
	workflows *services.Workflow
	engine    *engine.Orchestrator
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	return setupTestAppWith(t, file.NewPersistence(t.TempDir()))
}

func setupTestAppWith(t *testing.T, store persistence.Persistence) *testApp {
	t.Helper()

	logger := slog.Default()

	c := catalog.New(logger)
	require.NoError(t, builtin.Register(c, builtin.Dependencies{
		Recorder: assignment.NewMemoryRecorder(),
		Updater:  records.NewLogUpdater(logger),
		Sender:   notify.NewLogSender(logger),
	}))
	c.Freeze()

	validator := validation.New(c)
	orchestrator := engine.New(store, c, tracker.New(store.ExecutionRepository(), nil, logger), logger, engine.Options{})
	workflowService := services.NewWorkflow(store, validator, orchestrator)
	executionService := services.NewExecution(store, orchestrator)

	handlers := web.NewAPIHandlers(workflowService, executionService, validator, c)

	app := fiber.New()
	handlers.Register(app)

	t.Cleanup(orchestrator.Wait)

	return &testApp{app: app, workflows: workflowService, engine: orchestrator}
}

func (a *testApp) do(t *testing.T, method, target string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func confirmationWorkflow() map[string]any {
	return map[string]any{
		"name":     "Order confirmation SMS",
		"isActive": true,
		"trigger":  map[string]any{"kind": "record_created"},
		"actions": []any{
			map[string]any{
				"id":     "sms",
				"kind":   "send_sms",
				"config": map[string]any{"to": "{customerPhone}", "message": "Order {orderNumber} confirmed"},
			},
		},
	}
}

func createWorkflow(t *testing.T, a *testApp, body any) *models.WorkflowDefinition {
	t.Helper()

	status, raw := a.do(t, http.MethodPost, "/workflows", body)
	require.Equal(t, http.StatusCreated, status, string(raw))

	var workflow models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(raw, &workflow))

	return &workflow
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name:           "successful creation",
			requestBody:    confirmationWorkflow(),
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var workflow models.WorkflowDefinition
				require.NoError(t, json.Unmarshal(body, &workflow))
				assert.NotEmpty(t, workflow.ID)
				assert.Equal(t, "Order confirmation SMS", workflow.Name)
				require.Len(t, workflow.Actions, 1)
				assert.IsType(t, &models.SendSMSConfig{}, workflow.Actions[0].Config)
			},
		},
		{
			name: "validation error lists fields",
			requestBody: map[string]any{
				"name":    "",
				"trigger": map[string]any{"kind": "teleport"},
				"actions": []any{},
			},
			expectedStatus: http.StatusBadRequest,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var problem struct {
					Type   string            `json:"type"`
					Errors validation.Errors `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(body, &problem))
				assert.Equal(t, "validation_error", problem.Type)

				fields := make([]string, 0, len(problem.Errors))
				for _, fe := range problem.Errors {
					fields = append(fields, fe.Field)
				}

				assert.ElementsMatch(t, []string{"name", "trigger.kind", "actions"}, fields)
			},
		},
		{
			name:           "unknown action kind",
			requestBody:    map[string]any{"name": "x", "trigger": map[string]any{"kind": "manual"}, "actions": []any{map[string]any{"kind": "fax", "config": map[string]any{}}}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := setupTestApp(t)

			status, body := a.do(t, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.validateResult != nil {
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)
	created := createWorkflow(t, a, confirmationWorkflow())

	status, body := a.do(t, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var fetched models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	status, body = a.do(t, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "workflow_not_found")
}

func TestAPIHandlers_GetWorkflows(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)

	createWorkflow(t, a, confirmationWorkflow())

	inactive := confirmationWorkflow()
	inactive["isActive"] = false
	inactive["category"] = "Communication"
	createWorkflow(t, a, inactive)

	tests := []struct {
		name          string
		query         string
		expectedCount int
		expectedTotal int
	}{
		{name: "all", query: "", expectedCount: 2, expectedTotal: 2},
		{name: "active only", query: "?active=true", expectedCount: 1, expectedTotal: 1},
		{name: "by category", query: "?category=Communication", expectedCount: 1, expectedTotal: 1},
		{name: "by trigger kind", query: "?triggerKind=webhook", expectedCount: 0, expectedTotal: 0},
		{name: "paged", query: "?limit=1&offset=1", expectedCount: 1, expectedTotal: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, http.MethodGet, "/workflows"+tt.query, nil)
			require.Equal(t, http.StatusOK, status)

			var response struct {
				Workflows  []models.WorkflowDefinition `json:"workflows"`
				TotalCount int                         `json:"totalCount"`
			}
			require.NoError(t, json.Unmarshal(body, &response))
			assert.Len(t, response.Workflows, tt.expectedCount)
			assert.Equal(t, tt.expectedTotal, response.TotalCount)
		})
	}

	status, _ := a.do(t, http.MethodGet, "/workflows?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_UpdateWorkflow(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)
	created := createWorkflow(t, a, confirmationWorkflow())

	replacement := confirmationWorkflow()
	replacement["name"] = "Renamed"

	status, body := a.do(t, http.MethodPut, "/workflows/"+created.ID, replacement)
	require.Equal(t, http.StatusOK, status, string(body))

	var updated models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Renamed", updated.Name)

	status, _ = a.do(t, http.MethodPut, "/workflows/missing", replacement)
	assert.Equal(t, http.StatusNotFound, status)

	replacement["actions"] = []any{}
	status, _ = a.do(t, http.MethodPut, "/workflows/"+created.ID, replacement)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_DeleteWorkflow(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)
	created := createWorkflow(t, a, confirmationWorkflow())

	status, _ := a.do(t, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = a.do(t, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_SetWorkflowStatus(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)
	created := createWorkflow(t, a, confirmationWorkflow())

	status, body := a.do(t, http.MethodPatch, "/workflows/"+created.ID+"/status", map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, status, string(body))

	var updated models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.False(t, updated.IsActive)

	status, _ = a.do(t, http.MethodPost, "/workflows/"+created.ID+"/execute", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(t, http.MethodPatch, "/workflows/"+created.ID+"/status", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_ExecuteAndListExecutions(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)
	created := createWorkflow(t, a, confirmationWorkflow())

	status, body := a.do(t, http.MethodPost, "/workflows/"+created.ID+"/execute", map[string]any{
		"input": map[string]any{"customerPhone": "+15550100", "orderNumber": "ORD-42"},
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	var executed web.ExecuteResponse
	require.NoError(t, json.Unmarshal(body, &executed))
	require.NotEmpty(t, executed.ExecutionID)

	a.engine.Wait()

	status, body = a.do(t, http.MethodGet, "/executions/"+executed.ExecutionID, nil)
	require.Equal(t, http.StatusOK, status)

	var execution models.WorkflowExecution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	require.Len(t, execution.Steps, 1)
	assert.Equal(t, "Order ORD-42 confirmed", execution.Steps[0].Result["message"])

	status, body = a.do(t, http.MethodGet, "/workflows/"+created.ID+"/executions?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, status)

	var list services.ListExecutionsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Executions, 1)
	assert.Equal(t, services.Pagination{Page: 1, Limit: 10, Total: 1, Pages: 1}, list.Pagination)
	assert.False(t, list.Polling.Active)

	status, _ = a.do(t, http.MethodGet, "/workflows/"+created.ID+"/executions?page=-1", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodGet, "/executions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPost, "/workflows/missing/execute", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_ReceiveWebhook(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)

	hook := confirmationWorkflow()
	hook["trigger"] = map[string]any{"kind": "webhook", "config": map[string]any{"path": "shopify", "secret": "s3cret"}}
	createWorkflow(t, a, hook)

	tests := []struct {
		name           string
		path           string
		secret         string
		body           any
		expectedStatus int
	}{
		{name: "unknown path", path: "nobody", expectedStatus: http.StatusNotFound},
		{name: "missing secret", path: "shopify", expectedStatus: http.StatusUnauthorized},
		{name: "non object body", path: "shopify", secret: "s3cret", body: "[1,2]", expectedStatus: http.StatusBadRequest},
		{name: "accepted", path: "shopify", secret: "s3cret", body: map[string]any{"orderNumber": "ORD-1"}, expectedStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, http.MethodPost, "/webhooks/"+tt.path, tt.body, "X-Webhook-Secret", tt.secret)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if status == http.StatusAccepted {
				var response web.WebhookResponse
				require.NoError(t, json.Unmarshal(body, &response))
				assert.Len(t, response.ExecutionIDs, 1)
			}
		})
	}
}

func TestAPIHandlers_CatalogAndTemplates(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)

	status, body := a.do(t, http.MethodGet, "/catalog/actions", nil)
	require.Equal(t, http.StatusOK, status)

	var actions web.CatalogResponse
	require.NoError(t, json.Unmarshal(body, &actions))
	assert.Len(t, actions.Entries, 6)

	status, body = a.do(t, http.MethodGet, "/catalog/triggers", nil)
	require.Equal(t, http.StatusOK, status)

	var triggers web.CatalogResponse
	require.NoError(t, json.Unmarshal(body, &triggers))
	assert.Len(t, triggers.Entries, 6)

	status, body = a.do(t, http.MethodGet, "/templates?category=notification", nil)
	require.Equal(t, http.StatusOK, status)

	var listed web.TemplatesResponse
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Templates, 1)
	assert.Equal(t, "high-value-alert", listed.Templates[0].ID)
	assert.Len(t, listed.Categories, 3)

	status, body = a.do(t, http.MethodPost, "/templates/high-value-alert/instantiate", nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _ = a.do(t, http.MethodPost, "/templates/unknown/instantiate", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	a := setupTestApp(t)

	status, body := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}
