package web

import (
	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/templates"
	"github.com/dukex/orderflow/pkg/triggers/webhook"
)

const webhookSecretHeader = webhook.SecretHeader

// SetStatusRequest switches a workflow on or off.
type SetStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// ExecuteRequest carries the optional input of a manual run.
type ExecuteRequest struct {
	Input map[string]any `json:"input"`
}

type ExecuteResponse struct {
	ExecutionID string `json:"executionId"`
}

type WebhookResponse struct {
	ExecutionIDs []string `json:"executionIds"`
}

type CatalogResponse struct {
	Entries []catalog.Entry `json:"entries"`
}

type TemplatesResponse struct {
	Templates  []templates.Template `json:"templates"`
	Categories []string             `json:"categories"`
}
