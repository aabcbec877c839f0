// Package updaterecord implements the update_record action.
package updaterecord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/payload"
	"github.com/dukex/orderflow/pkg/protocol"
	"github.com/dukex/orderflow/pkg/records"
)

const (
	defaultEntity      = "order"
	defaultRecordField = "orderId"
)

var ErrMissingRecordID = errors.New("payload has no record id")

type Action struct {
	config  *models.UpdateRecordConfig
	updater records.Updater
}

func NewAction(config *models.UpdateRecordConfig, updater records.Updater) *Action {
	return &Action{config: config, updater: updater}
}

func (a *Action) Execute(ctx context.Context, req protocol.ActionRequest, logger *slog.Logger) (protocol.ActionResult, error) {
	entity := a.config.Entity
	if entity == "" {
		entity = defaultEntity
	}

	field := a.config.RecordField
	if field == "" {
		field = defaultRecordField
	}

	value, ok := payload.Lookup(req.Input, field)
	recordID := payload.String(value)

	if !ok || recordID == "" {
		return protocol.ActionResult{}, fmt.Errorf("%w: field %q", ErrMissingRecordID, field)
	}

	if err := a.updater.Update(ctx, entity, recordID, a.config.Fields); err != nil {
		return protocol.ActionResult{}, fmt.Errorf("failed to update %s %s: %w", entity, recordID, err)
	}

	logger.InfoContext(ctx, "Record updated", "module", "update_record_action", "entity", entity, "recordId", recordID)

	return protocol.ActionResult{Output: map[string]any{
		"entity":   entity,
		"recordId": recordID,
		"fields":   a.config.Fields,
	}}, nil
}

type ActionFactory struct {
	updater records.Updater
}

func NewActionFactory(updater records.Updater) *ActionFactory {
	return &ActionFactory{updater: updater}
}

func (f *ActionFactory) Create(_ context.Context, config models.ActionConfig) (protocol.Action, error) {
	cfg, ok := config.(*models.UpdateRecordConfig)
	if !ok {
		return nil, fmt.Errorf("%w: expected update_record config, got %T", protocol.ErrInvalidConfig, config)
	}

	return NewAction(cfg, f.updater), nil
}

func (*ActionFactory) ID() string { return string(models.ActionUpdateRecord) }

func (*ActionFactory) Name() string { return "Update Record" }

func (*ActionFactory) Description() string {
	return "Writes fields on the triggering record. Values accept {field} placeholders."
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity": map[string]any{
				"type":    "string",
				"default": defaultEntity,
			},
			"recordField": map[string]any{
				"type":        "string",
				"description": "Payload field holding the record id",
				"default":     defaultRecordField,
			},
			"fields": map[string]any{
				"type":          "object",
				"description":   "Fields to set on the record",
				"minProperties": 1,
				"examples":      []map[string]any{{"status": "confirmed", "priority": "high"}},
			},
		},
		"required":             []string{"fields"},
		"additionalProperties": false,
	}
}
