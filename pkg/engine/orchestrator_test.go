package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/catalog/builtin"
	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/mocks"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/notify"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/persistence/file"
	"github.com/dukex/orderflow/pkg/records"
	"github.com/dukex/orderflow/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errProviderDown = errors.New("provider down")

type recordingSender struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.To == "fail" {
		return "", errProviderDown
	}

	s.messages = append(s.messages, msg)

	return "msg-" + msg.To, nil
}

func (s *recordingSender) Sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]notify.Message(nil), s.messages...)
}

type fixture struct {
	engine   *Orchestrator
	store    persistence.Persistence
	sender   *recordingSender
	recorder *assignment.MemoryRecorder
	bus      *mocks.MockEventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())
	sender := &recordingSender{}
	recorder := assignment.NewMemoryRecorder()

	c := catalog.New(logger)
	require.NoError(t, builtin.Register(c, builtin.Dependencies{
		Recorder: recorder,
		Updater:  records.NewLogUpdater(logger),
		Sender:   sender,
	}))
	c.Freeze()

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	tr := tracker.New(store.ExecutionRepository(), bus, logger)

	return &fixture{
		engine:   New(store, c, tr, logger, Options{MaxConcurrent: 4}),
		store:    store,
		sender:   sender,
		recorder: recorder,
		bus:      bus,
	}
}

func (f *fixture) save(t *testing.T, workflow *models.WorkflowDefinition) *models.WorkflowDefinition {
	t.Helper()

	workflow.IsActive = true
	require.NoError(t, f.store.WorkflowRepository().Save(context.Background(), workflow))

	return workflow
}

func (f *fixture) execution(t *testing.T, id string) *models.WorkflowExecution {
	t.Helper()

	execution, err := f.store.ExecutionRepository().GetByID(context.Background(), id)
	require.NoError(t, err)

	return execution
}

func smsAction(id, to, message string) models.WorkflowAction {
	return models.WorkflowAction{
		ID:     id,
		Kind:   models.ActionSendSMS,
		Config: &models.SendSMSConfig{To: to, Message: message},
	}
}

func orderCreatedWorkflow(id string, actions ...models.WorkflowAction) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:      id,
		Name:    "Order confirmation",
		Trigger: models.Trigger{Kind: models.TriggerRecordCreated},
		Actions: actions,
	}
}

func TestOrchestrator_ConfirmationSMS(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-sms", smsAction("a1", "{customerPhone}", "Order {orderNumber} confirmed")))

	ids, err := f.engine.HandleEvent(ctx, events.NewTriggerEvent(events.OrderCreatedEvent, map[string]any{
		"orderNumber":   "ORD-42",
		"customerPhone": "+15550100",
	}))
	require.NoError(t, err)
	require.Len(t, ids, 1)

	f.engine.Wait()

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Order ORD-42 confirmed", sent[0].Body)
	assert.Equal(t, "+15550100", sent[0].To)
	assert.Equal(t, ids[0], sent[0].ExecutionID)

	execution := f.execution(t, ids[0])
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, string(events.OrderCreatedEvent), execution.Trigger)
	require.Len(t, execution.Steps, 1)
	assert.Equal(t, models.StepSucceeded, execution.Steps[0].Status)
	assert.NotNil(t, execution.CompletedAt)

	assert.Equal(t, []events.EventType{events.ExecutionStartedEvent, events.ExecutionCompletedEvent}, f.bus.PublishedTypes())
}

func TestOrchestrator_UnresolvedPlaceholderStaysVerbatim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-sms", smsAction("a1", "+15550100", "Hi {customerName}, order {orderNumber}")))

	_, err := f.engine.HandleEvent(ctx, events.NewTriggerEvent(events.OrderCreatedEvent, map[string]any{"orderNumber": "ORD-7"}))
	require.NoError(t, err)
	f.engine.Wait()

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi {customerName}, order ORD-7", sent[0].Body)
}

func TestOrchestrator_AndConditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	workflow := orderCreatedWorkflow("wf-premium", smsAction("a1", "+15550100", "Premium order {orderNumber}"))
	workflow.Conditions = &models.ConditionGroup{
		Logic: models.LogicAnd,
		Rules: []models.ConditionRule{
			{ID: "r1", Field: "orderTotal", Operator: models.OperatorGreaterThan, Value: "100"},
			{ID: "r2", Field: "productName", Operator: models.OperatorContains, Value: "Premium"},
		},
	}
	f.save(t, workflow)

	tests := []struct {
		name    string
		payload map[string]any
		started int
	}{
		{"both hold", map[string]any{"orderNumber": "ORD-1", "orderTotal": 150.0, "productName": "Premium Widget"}, 1},
		{"total too low", map[string]any{"orderNumber": "ORD-2", "orderTotal": 80.0, "productName": "Premium Widget"}, 0},
		{"not premium", map[string]any{"orderNumber": "ORD-3", "orderTotal": 150.0, "productName": "Basic Widget"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := f.engine.HandleEvent(ctx, events.NewTriggerEvent(events.OrderCreatedEvent, tt.payload))
			require.NoError(t, err)
			assert.Len(t, ids, tt.started)
		})
	}

	f.engine.Wait()
	assert.Len(t, f.sender.Sent(), 1)
}

func TestOrchestrator_IgnoresOtherTriggersAndInactiveWorkflows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-created", smsAction("a1", "+1", "created")))

	inactive := orderCreatedWorkflow("wf-inactive", smsAction("a1", "+1", "inactive"))
	require.NoError(t, f.store.WorkflowRepository().Save(ctx, inactive))

	ids, err := f.engine.HandleEvent(ctx, events.NewTriggerEvent(events.PaymentReceivedEvent, nil))
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = f.engine.HandleEvent(ctx, events.NewTriggerEvent(events.OrderCreatedEvent, nil))
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	f.engine.Wait()
}

func TestOrchestrator_ActionFailureKeepsPartialSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-fail",
		smsAction("a1", "+15550100", "first"),
		smsAction("a2", "fail", "second"),
		smsAction("a3", "+15550100", "third"),
	))

	id, err := f.engine.Execute(ctx, "wf-fail", map[string]any{})
	require.NoError(t, err)
	f.engine.Wait()

	execution := f.execution(t, id)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Equal(t, "action 1 (send_sms): failed to send sms: provider down", execution.Error)
	require.NotNil(t, execution.FailedAction)
	assert.Equal(t, 1, *execution.FailedAction)

	require.Len(t, execution.Steps, 2)
	assert.Equal(t, models.StepSucceeded, execution.Steps[0].Status)
	assert.Equal(t, models.StepFailed, execution.Steps[1].Status)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "first", sent[0].Body)
}

func TestOrchestrator_NoAssigneesFailsBeforeAnyAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-assign",
		smsAction("a1", "+15550100", "hello"),
		models.WorkflowAction{
			ID:   "a2",
			Kind: models.ActionAssignUser,
			Config: &models.AssignUserConfig{
				TargetType:       models.TargetSalesRep,
				DistributionMode: models.DistributionWeighted,
				OnlyUnassigned:   true,
			},
		},
	))

	id, err := f.engine.Execute(ctx, "wf-assign", map[string]any{"orderId": "o-1"})
	require.NoError(t, err)
	f.engine.Wait()

	execution := f.execution(t, id)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Empty(t, execution.Steps)
	assert.Nil(t, execution.FailedAction)
	assert.Contains(t, execution.Error, ErrNoAssignees.Error())
	assert.Empty(t, f.sender.Sent())

	assert.Equal(t, []events.EventType{events.ExecutionStartedEvent, events.ExecutionCompletedEvent}, f.bus.PublishedTypes())
}

func TestOrchestrator_AssignUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-assign", models.WorkflowAction{
		ID:   "a1",
		Kind: models.ActionAssignUser,
		Config: &models.AssignUserConfig{
			TargetType:       models.TargetSalesRep,
			DistributionMode: models.DistributionWeighted,
			Assignments:      []models.UserAssignment{{UserID: "rep-1", Weight: 100}},
			OnlyUnassigned:   true,
		},
	}))

	id, err := f.engine.Execute(ctx, "wf-assign", map[string]any{"orderId": "o-1"})
	require.NoError(t, err)
	f.engine.Wait()

	execution := f.execution(t, id)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)

	owner, err := f.recorder.Owner(ctx, models.TargetSalesRep, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "rep-1", owner)
}

func TestOrchestrator_ActionConditionsSkipStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gated := smsAction("a1", "+15550100", "vip")
	gated.Conditions = &models.ConditionGroup{
		Logic: models.LogicAnd,
		Rules: []models.ConditionRule{{ID: "r1", Field: "orderTotal", Operator: models.OperatorGreaterThan, Value: "1000"}},
	}

	f.save(t, orderCreatedWorkflow("wf-gated", gated, smsAction("a2", "+15550100", "everyone")))

	id, err := f.engine.Execute(ctx, "wf-gated", map[string]any{"orderTotal": 10})
	require.NoError(t, err)
	f.engine.Wait()

	execution := f.execution(t, id)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	require.Len(t, execution.Steps, 2)
	assert.Equal(t, models.StepSkipped, execution.Steps[0].Status)
	assert.Equal(t, models.StepSucceeded, execution.Steps[1].Status)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "everyone", sent[0].Body)
}

func TestOrchestrator_WaitSuspendsAndResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-wait",
		models.WorkflowAction{ID: "a1", Kind: models.ActionWait, Config: &models.WaitConfig{Duration: models.Duration(time.Hour)}},
		smsAction("a2", "+15550100", "Still thinking about order {orderNumber}?"),
	))

	id, err := f.engine.Execute(ctx, "wf-wait", map[string]any{"orderNumber": "ORD-9"})
	require.NoError(t, err)
	f.engine.Wait()

	execution := f.execution(t, id)
	assert.Equal(t, models.ExecutionRunning, execution.Status)
	assert.True(t, execution.IsWaiting())
	assert.Equal(t, 1, execution.NextAction)
	require.Len(t, execution.Steps, 1)
	assert.Equal(t, models.StepWaiting, execution.Steps[0].Status)
	assert.Empty(t, f.sender.Sent())

	resumed, err := f.engine.ResumeDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, resumed)

	later := execution.ResumeAt.Add(time.Second)

	resumed, err = f.engine.ResumeDue(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	f.engine.Wait()

	execution = f.execution(t, id)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Nil(t, execution.ResumeAt)
	require.Len(t, execution.Steps, 2)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Still thinking about order ORD-9?", sent[0].Body)

	resumed, err = f.engine.ResumeDue(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, resumed)
}

func TestOrchestrator_ResumeFailsWhenWorkflowDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-wait",
		models.WorkflowAction{ID: "a1", Kind: models.ActionWait, Config: &models.WaitConfig{Duration: models.Duration(time.Minute)}},
		smsAction("a2", "+15550100", "later"),
	))

	id, err := f.engine.Execute(ctx, "wf-wait", nil)
	require.NoError(t, err)
	f.engine.Wait()

	require.NoError(t, f.store.WorkflowRepository().Delete(ctx, "wf-wait"))

	resumed, err := f.engine.ResumeDue(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, resumed)

	execution := f.execution(t, id)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Equal(t, ErrWorkflowGone.Error(), execution.Error)
	assert.Empty(t, f.sender.Sent())
}

func TestOrchestrator_Execute_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Execute(ctx, "missing", nil)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	inactive := orderCreatedWorkflow("wf-off", smsAction("a1", "+1", "x"))
	require.NoError(t, f.store.WorkflowRepository().Save(ctx, inactive))

	_, err = f.engine.Execute(ctx, "wf-off", nil)
	require.ErrorIs(t, err, models.ErrWorkflowInactive)
}

func TestOrchestrator_ShutdownRejectsNewWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, orderCreatedWorkflow("wf-sms", smsAction("a1", "+1", "x")))

	require.NoError(t, f.engine.Shutdown(ctx))

	_, err := f.engine.Execute(ctx, "wf-sms", nil)
	require.ErrorIs(t, err, ErrStopped)
}

func TestOrchestrator_DefinitionCache(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockPersistence()
	workflows := store.GetMockWorkflowRepository()

	workflows.On("List", mock.Anything, mock.Anything).Return(&persistence.WorkflowListResult{}, nil)

	c := catalog.New(slog.Default())
	require.NoError(t, builtin.Register(c, builtin.Dependencies{}))
	c.Freeze()

	o := New(store, c, tracker.New(store.ExecutionRepository(), nil, slog.Default()), slog.Default(),
		Options{CacheTTL: time.Minute})

	for range 3 {
		ids, err := o.HandleEvent(ctx, events.NewTriggerEvent(events.OrderCreatedEvent, nil))
		require.NoError(t, err)
		assert.Empty(t, ids)
	}

	workflows.AssertNumberOfCalls(t, "List", 1)

	o.InvalidateDefinitions()

	_, err := o.HandleEvent(ctx, events.NewTriggerEvent(events.OrderCreatedEvent, nil))
	require.NoError(t, err)
	workflows.AssertNumberOfCalls(t, "List", 2)
}

func TestActionError(t *testing.T) {
	err := &ActionError{Index: 2, Kind: models.ActionHTTPCall, Err: errProviderDown}

	assert.Equal(t, "action 2 (http_call): provider down", err.Error())
	require.ErrorIs(t, err, errProviderDown)
}
