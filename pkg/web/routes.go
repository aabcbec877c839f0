package web

import "github.com/gofiber/fiber/v3"

// Register mounts every API route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Patch("/:id/status", h.SetWorkflowStatus)
	w.Post("/:id/execute", h.ExecuteWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)

	router.Get("/executions/:id", h.GetExecution)

	router.Get("/catalog/triggers", h.GetTriggerCatalog)
	router.Get("/catalog/actions", h.GetActionCatalog)

	router.Get("/templates", h.GetTemplates)
	router.Post("/templates/:id/instantiate", h.CreateWorkflowFromTemplate)

	router.Post("/webhooks/:path", h.ReceiveWebhook)

	router.Get("/health", h.HealthCheck)
}
