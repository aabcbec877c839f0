// Package templates ships ready-made workflow definitions operators can start
// from.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/orderflow/pkg/models"
)

var ErrTemplateNotFound = errors.New("workflow template not found")

const (
	CategoryAssignment    = "Assignment"
	CategoryNotification  = "Notification"
	CategoryCommunication = "Communication"
)

type Template struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Category    string                    `json:"category"`
	Workflow    models.WorkflowDefinition `json:"workflow"`
}

var catalog = []Template{
	{
		ID:          "assign-by-product",
		Name:        "Auto-Assign Orders by Product Type",
		Description: "Assign confirmed premium orders to the specialist sales reps and every other order evenly.",
		Category:    CategoryAssignment,
		Workflow: models.WorkflowDefinition{
			Name:    "Auto-Assign Orders by Product Type",
			Trigger: models.Trigger{Kind: models.TriggerStatusChanged, Config: map[string]any{"toStatus": "confirmed"}},
			Actions: []models.WorkflowAction{
				{
					ID:   "assign-specialist",
					Kind: models.ActionAssignUser,
					Config: &models.AssignUserConfig{
						TargetType:       models.TargetSalesRep,
						DistributionMode: models.DistributionWeighted,
						OnlyUnassigned:   true,
						Assignments:      []models.UserAssignment{},
					},
					Conditions: &models.ConditionGroup{
						Logic: models.LogicOr,
						Rules: []models.ConditionRule{
							{ID: "premium", Field: "productName", Operator: models.OperatorContains, Value: "Premium"},
							{ID: "electronics", Field: "productName", Operator: models.OperatorContains, Value: "Electronics"},
						},
					},
				},
				{
					ID:   "assign-any",
					Kind: models.ActionAssignUser,
					Config: &models.AssignUserConfig{
						TargetType:       models.TargetSalesRep,
						DistributionMode: models.DistributionEven,
						OnlyUnassigned:   true,
						Assignments:      []models.UserAssignment{},
					},
				},
			},
		},
	},
	{
		ID:          "high-value-alert",
		Name:        "High-Value Order Notification",
		Description: "Flag confirmed orders above 200 and alert the manager by email and SMS.",
		Category:    CategoryNotification,
		Workflow: models.WorkflowDefinition{
			Name:    "High-Value Order Notification",
			Trigger: models.Trigger{Kind: models.TriggerStatusChanged, Config: map[string]any{"toStatus": "confirmed"}},
			Conditions: &models.ConditionGroup{
				Logic: models.LogicAnd,
				Rules: []models.ConditionRule{
					{ID: "total", Field: "orderTotal", Operator: models.OperatorGreaterThan, Value: "200"},
				},
			},
			Actions: []models.WorkflowAction{
				{
					ID:     "prioritize",
					Kind:   models.ActionUpdateRecord,
					Config: &models.UpdateRecordConfig{Fields: map[string]any{"priority": 5, "tag": "high-value"}},
				},
				{
					ID:   "email-manager",
					Kind: models.ActionSendEmail,
					Config: &models.SendEmailConfig{
						To:      "manager@example.com",
						Subject: "High-Value Order Alert",
						Body:    "A high-value order has been confirmed. Order ID: {orderId}, Total: {orderTotal}",
					},
				},
				{
					ID:   "sms-manager",
					Kind: models.ActionSendSMS,
					Config: &models.SendSMSConfig{
						To:      "+1234567890",
						Message: "High-value order alert! Order #{orderNumber} - {orderTotal}",
					},
				},
			},
		},
	},
	{
		ID:          "confirmation-sms",
		Name:        "Customer Order Confirmation SMS",
		Description: "Text the customer when the order is confirmed.",
		Category:    CategoryCommunication,
		Workflow: models.WorkflowDefinition{
			Name:    "Customer Order Confirmation SMS",
			Trigger: models.Trigger{Kind: models.TriggerStatusChanged, Config: map[string]any{"toStatus": "confirmed"}},
			Actions: []models.WorkflowAction{
				{
					ID:   "sms-customer",
					Kind: models.ActionSendSMS,
					Config: &models.SendSMSConfig{
						To:      "{customer.phoneNumber}",
						Message: "Hello {customer.firstName}, your order #{orderNumber} has been confirmed!",
					},
				},
			},
		},
	},
	{
		ID:          "delivery-assignment",
		Name:        "Auto-Assign Delivery Agent",
		Description: "Assign a delivery agent once the order is ready for pickup, then text the agent.",
		Category:    CategoryAssignment,
		Workflow: models.WorkflowDefinition{
			Name:    "Auto-Assign Delivery Agent",
			Trigger: models.Trigger{Kind: models.TriggerStatusChanged, Config: map[string]any{"toStatus": "ready_for_pickup"}},
			Actions: []models.WorkflowAction{
				{
					ID:   "assign-agent",
					Kind: models.ActionAssignUser,
					Config: &models.AssignUserConfig{
						TargetType:       models.TargetDeliveryAgent,
						DistributionMode: models.DistributionEven,
						OnlyUnassigned:   true,
						Assignments:      []models.UserAssignment{},
					},
				},
				{
					ID:   "sms-agent",
					Kind: models.ActionSendSMS,
					Config: &models.SendSMSConfig{
						To:      "{deliveryAgent.phoneNumber}",
						Message: "New delivery assigned! Order #{orderNumber}. Address: {deliveryAddress}",
					},
				},
			},
		},
	},
}

// List returns the templates of category, or every template when category
// is empty. Matching ignores case.
func List(category string) []Template {
	out := make([]Template, 0, len(catalog))

	for _, t := range catalog {
		if category == "" || strings.EqualFold(t.Category, category) {
			out = append(out, t)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })

	return out
}

// Categories returns the distinct template categories, sorted.
func Categories() []string {
	seen := map[string]bool{}

	var out []string

	for _, t := range catalog {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}

	sort.Strings(out)

	return out
}

// Instantiate returns an independent, inactive copy of the template's
// workflow, ready to be edited and saved.
func Instantiate(id string) (*models.WorkflowDefinition, error) {
	for _, t := range catalog {
		if t.ID != id {
			continue
		}

		encoded, err := json.Marshal(t.Workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to copy template %s: %w", id, err)
		}

		var workflow models.WorkflowDefinition
		if err := json.Unmarshal(encoded, &workflow); err != nil {
			return nil, fmt.Errorf("failed to copy template %s: %w", id, err)
		}

		workflow.Category = t.Category
		workflow.Description = t.Description
		workflow.IsActive = false

		return &workflow, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}
