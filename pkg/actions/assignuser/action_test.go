package assignuser

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/distributor"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUpdater struct {
	calls []map[string]any
}

func (u *recordingUpdater) Update(_ context.Context, entity, id string, fields map[string]any) error {
	u.calls = append(u.calls, map[string]any{"entity": entity, "id": id, "fields": fields})

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func salesRepConfig(assignments ...models.UserAssignment) *models.AssignUserConfig {
	return &models.AssignUserConfig{
		TargetType:       models.TargetSalesRep,
		Assignments:      assignments,
		DistributionMode: models.DistributionWeighted,
		OnlyUnassigned:   true,
	}
}

func TestAction_AssignsAndWritesRecord(t *testing.T) {
	recorder := assignment.NewMemoryRecorder()
	updater := &recordingUpdater{}
	action := NewAction(salesRepConfig(models.UserAssignment{UserID: "alice", Weight: 100}), recorder, updater)

	result, err := action.Execute(context.Background(), protocol.ActionRequest{Input: map[string]any{"orderId": "o-1"}}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, true, result.Output["assigned"])
	assert.Equal(t, "alice", result.Output["assignedTo"])
	assert.Equal(t, "customerRepId", result.Output["field"])

	owner, err := recorder.Owner(context.Background(), models.TargetSalesRep, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	require.Len(t, updater.calls, 1)
	assert.Equal(t, map[string]any{"customerRepId": "alice"}, updater.calls[0]["fields"])
}

func TestAction_KeepsExistingOwner(t *testing.T) {
	action := NewAction(salesRepConfig(models.UserAssignment{UserID: "alice", Weight: 100}), assignment.NewMemoryRecorder(), nil)

	input := map[string]any{"orderId": "o-1", "customerRepId": "bob"}
	result, err := action.Execute(context.Background(), protocol.ActionRequest{Input: input}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, false, result.Output["assigned"])
	assert.Equal(t, "bob", result.Output["assignedTo"])
}

func TestAction_KeepsOwnerFromRecorder(t *testing.T) {
	recorder := assignment.NewMemoryRecorder()
	_, _, err := recorder.Assign(context.Background(), assignment.Request{TargetType: models.TargetSalesRep, RecordID: "o-1", UserID: "carol"})
	require.NoError(t, err)

	action := NewAction(salesRepConfig(models.UserAssignment{UserID: "alice", Weight: 100}), recorder, nil)

	result, err := action.Execute(context.Background(), protocol.ActionRequest{Input: map[string]any{"orderId": "o-1"}}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "carol", result.Output["assignedTo"])
}

func TestAction_NoAssignees(t *testing.T) {
	action := NewAction(salesRepConfig(), assignment.NewMemoryRecorder(), nil)

	_, err := action.Execute(context.Background(), protocol.ActionRequest{Input: map[string]any{"orderId": "o-1"}}, testLogger())

	require.ErrorIs(t, err, distributor.ErrNoAssignees)
}

func TestAction_MissingRecordID(t *testing.T) {
	action := NewAction(salesRepConfig(models.UserAssignment{UserID: "alice", Weight: 100}), assignment.NewMemoryRecorder(), nil)

	_, err := action.Execute(context.Background(), protocol.ActionRequest{Input: map[string]any{}}, testLogger())

	require.ErrorIs(t, err, ErrMissingRecordID)
}

func TestAction_CustomRecordField(t *testing.T) {
	cfg := salesRepConfig(models.UserAssignment{UserID: "dave", Weight: 100})
	cfg.TargetType = models.TargetDeliveryAgent
	cfg.RecordField = "order.id"

	action := NewAction(cfg, assignment.NewMemoryRecorder(), nil)

	input := map[string]any{"order": map[string]any{"id": "o-9"}}
	result, err := action.Execute(context.Background(), protocol.ActionRequest{Input: input}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, "o-9", result.Output["recordId"])
	assert.Equal(t, "deliveryAgentId", result.Output["field"])
}

func TestAction_KeepsNestedOwner(t *testing.T) {
	cfg := salesRepConfig(models.UserAssignment{UserID: "alice", Weight: 100})
	cfg.RecordField = "order.id"

	recorder := assignment.NewMemoryRecorder()
	action := NewAction(cfg, recorder, nil)

	input := map[string]any{"order": map[string]any{"id": "o-7", "customerRepId": "bob"}}
	result, err := action.Execute(context.Background(), protocol.ActionRequest{Input: input}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, false, result.Output["assigned"])
	assert.Equal(t, "bob", result.Output["assignedTo"])

	owner, err := recorder.Owner(context.Background(), models.TargetSalesRep, "o-7")
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestActionFactory_RejectsOtherConfigs(t *testing.T) {
	factory := NewActionFactory(assignment.NewMemoryRecorder(), nil)

	_, err := factory.Create(context.Background(), &models.SendSMSConfig{})
	require.ErrorIs(t, err, protocol.ErrInvalidConfig)

	action, err := factory.Create(context.Background(), salesRepConfig())
	require.NoError(t, err)
	assert.NotNil(t, action)
	assert.Equal(t, "assign_user", factory.ID())
}
