// Package assignuser implements the assign_user action.
package assignuser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/distributor"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/payload"
	"github.com/dukex/orderflow/pkg/protocol"
	"github.com/dukex/orderflow/pkg/records"
)

const recordEntity = "order"

var ErrMissingRecordID = errors.New("payload has no record id")

type Action struct {
	config   *models.AssignUserConfig
	recorder assignment.Recorder
	updater  records.Updater
	rand     *rand.Rand
}

func NewAction(config *models.AssignUserConfig, recorder assignment.Recorder, updater records.Updater) *Action {
	return &Action{
		config:   config,
		recorder: recorder,
		updater:  updater,
		rand:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // load spreading only
	}
}

func (a *Action) Execute(ctx context.Context, req protocol.ActionRequest, logger *slog.Logger) (protocol.ActionResult, error) {
	logger = logger.With("module", "assign_user_action", "targetType", a.config.TargetType)

	value, ok := payload.Lookup(req.Input, a.config.RecordIDField())
	recordID := payload.String(value)

	if !ok || recordID == "" {
		return protocol.ActionResult{}, fmt.Errorf("%w: field %q", ErrMissingRecordID, a.config.RecordIDField())
	}

	field := a.config.TargetType.RecordField()

	if a.config.OnlyUnassigned {
		if current := currentOwner(req.Input, a.config.RecordIDField(), field); current != "" {
			logger.InfoContext(ctx, "Record already assigned, keeping owner", "recordId", recordID, "owner", current)

			return alreadyAssigned(a.config.TargetType, recordID, current), nil
		}
	}

	userID, err := distributor.Select(a.config.Assignments, a.config.DistributionMode, a.rand)
	if err != nil {
		return protocol.ActionResult{}, err
	}

	owner, assigned, err := a.recorder.Assign(ctx, assignment.Request{
		TargetType:     a.config.TargetType,
		RecordID:       recordID,
		UserID:         userID,
		OnlyUnassigned: a.config.OnlyUnassigned,
	})
	if err != nil {
		return protocol.ActionResult{}, err
	}

	if !assigned {
		logger.InfoContext(ctx, "Record already assigned, keeping owner", "recordId", recordID, "owner", owner)

		return alreadyAssigned(a.config.TargetType, recordID, owner), nil
	}

	if a.updater != nil {
		if err := a.updater.Update(ctx, recordEntity, recordID, map[string]any{field: userID}); err != nil {
			return protocol.ActionResult{}, fmt.Errorf("failed to write %s: %w", field, err)
		}
	}

	logger.InfoContext(ctx, "Record assigned", "recordId", recordID, "userId", userID)

	return protocol.ActionResult{Output: map[string]any{
		"assigned":   true,
		"assignedTo": userID,
		"targetType": string(a.config.TargetType),
		"recordId":   recordID,
		"field":      field,
	}}, nil
}

// currentOwner reads the owner field of the record. A nested record id such as
// "order.id" makes the owner a sibling ("order.customerRepId"); a top-level
// owner field is used when the record carries none.
func currentOwner(input map[string]any, recordIDField, field string) string {
	if prefix, _, nested := cutLast(recordIDField, "."); nested {
		if value, ok := payload.Lookup(input, prefix+"."+field); ok {
			if owner := payload.String(value); owner != "" {
				return owner
			}
		}
	}

	value, _ := payload.Lookup(input, field)

	return payload.String(value)
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}

	return s[:i], s[i+len(sep):], true
}

func alreadyAssigned(target models.TargetType, recordID, owner string) protocol.ActionResult {
	return protocol.ActionResult{Output: map[string]any{
		"assigned":   false,
		"assignedTo": owner,
		"targetType": string(target),
		"recordId":   recordID,
		"field":      target.RecordField(),
	}}
}
