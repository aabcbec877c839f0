package assignuser

import (
	"context"
	"fmt"

	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/protocol"
	"github.com/dukex/orderflow/pkg/records"
)

type ActionFactory struct {
	recorder assignment.Recorder
	updater  records.Updater
}

// NewActionFactory returns the assign_user factory. updater may be nil, in
// which case only the assignment store is written.
func NewActionFactory(recorder assignment.Recorder, updater records.Updater) *ActionFactory {
	return &ActionFactory{recorder: recorder, updater: updater}
}

func (f *ActionFactory) Create(_ context.Context, config models.ActionConfig) (protocol.Action, error) {
	cfg, ok := config.(*models.AssignUserConfig)
	if !ok {
		return nil, fmt.Errorf("%w: expected assign_user config, got %T", protocol.ErrInvalidConfig, config)
	}

	return NewAction(cfg, f.recorder, f.updater), nil
}

func (*ActionFactory) ID() string {
	return string(models.ActionAssignUser)
}

func (*ActionFactory) Name() string {
	return "Assign User"
}

func (*ActionFactory) Description() string {
	return "Assigns the record to a sales rep or delivery agent, spreading records evenly or by weight."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"targetType": map[string]any{
				"type":        "string",
				"description": "Role the assignee fills on the record",
				"enum":        []string{string(models.TargetSalesRep), string(models.TargetDeliveryAgent)},
			},
			"assignments": map[string]any{
				"type":        []string{"array", "null"},
				"description": "Candidate users and their share of records in percent",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"userId": map[string]any{"type": "string", "minLength": 1},
						"weight": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
					},
					"required": []string{"userId", "weight"},
				},
				"examples": []any{
					[]map[string]any{{"userId": "rep-1", "weight": 60}, {"userId": "rep-2", "weight": 40}},
				},
			},
			"distributionMode": map[string]any{
				"type":    "string",
				"enum":    []string{string(models.DistributionEven), string(models.DistributionWeighted)},
				"default": string(models.DistributionWeighted),
			},
			"onlyUnassigned": map[string]any{
				"type":        "boolean",
				"description": "Keep the current owner when the record is already assigned",
				"default":     true,
			},
			"recordField": map[string]any{
				"type":        "string",
				"description": "Payload field holding the record id",
				"default":     "orderId",
			},
		},
		"required":             []string{"targetType", "distributionMode"},
		"additionalProperties": false,
	}
}
