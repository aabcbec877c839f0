// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/services"
	"github.com/dukex/orderflow/pkg/templates"
	"github.com/dukex/orderflow/pkg/validation"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	validator        *validation.Validator
	catalog          *catalog.Catalog
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	validator *validation.Validator,
	catalog *catalog.Catalog,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		validator:        validator,
		catalog:          catalog,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   result.Workflows,
		"totalCount":  result.TotalCount,
		"hasNextPage": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{
		TriggerKind: models.TriggerKind(c.Query("triggerKind")),
		Category:    c.Query("category"),
	}

	var err error

	if req.Limit, err = queryInt(c, "limit"); err != nil {
		return nil, err
	}

	if req.Offset, err = queryInt(c, "offset"); err != nil {
		return nil, err
	}

	if active := c.Query("active"); active != "" {
		if req.ActiveOnly, err = strconv.ParseBool(active); err != nil {
			return nil, err
		}
	}

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var workflow models.WorkflowDefinition
	if err := json.Unmarshal(c.Body(), &workflow); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), &workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) CreateWorkflowFromTemplate(c fiber.Ctx) error {
	created, err := h.workflowService.CreateFromTemplate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateWorkflow replaces the whole workflow document.
func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var workflow models.WorkflowDefinition
	if err := json.Unmarshal(c.Body(), &workflow); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("id"), &workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) SetWorkflowStatus(c fiber.Ctx) error {
	var req SetStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return handleServiceError(c, services.NewValidationError("SetWorkflowStatus", "INVALID_STATUS", err.Error(), err))
	}

	workflow, err := h.workflowService.SetActive(c.Context(), c.Params("id"), *req.IsActive)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteWorkflow starts a manual run. The body is optional.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteRequest

	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return badRequest(c, "Invalid JSON format: "+err.Error())
		}
	}

	id, err := h.executionService.Execute(c.Context(), c.Params("id"), req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(ExecuteResponse{ExecutionID: id})
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return badRequest(c, "Invalid page: "+err.Error())
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	result, err := h.executionService.ListExecutions(c.Context(), services.ListExecutionsRequest{
		WorkflowID: c.Params("id"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// ReceiveWebhook turns a call on /webhooks/:path into a webhook trigger
// event. The JSON body, if any, becomes the execution input.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	payload := map[string]any{}

	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return badRequest(c, "Webhook body must be a JSON object")
		}
	}

	ids, err := h.executionService.Webhook(c.Context(), c.Params("path"), c.Get(webhookSecretHeader), payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(WebhookResponse{ExecutionIDs: ids})
}

func (h *APIHandlers) GetTriggerCatalog(c fiber.Ctx) error {
	return c.JSON(CatalogResponse{Entries: h.catalog.Triggers()})
}

func (h *APIHandlers) GetActionCatalog(c fiber.Ctx) error {
	return c.JSON(CatalogResponse{Entries: h.catalog.Actions()})
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	return c.JSON(TemplatesResponse{
		Templates:  templates.List(c.Query("category")),
		Categories: templates.Categories(),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	catalogCheck, catalogOk := "Catalog is frozen", h.catalog.Frozen()
	if !catalogOk {
		catalogCheck = "Catalog is still accepting registrations"
	}

	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Orderflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if catalogOk && repOk {
		status = "healthy"
		message = "Orderflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"catalog":    catalogCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func queryInt(c fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}

	return strconv.Atoi(raw)
}
