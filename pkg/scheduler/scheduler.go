// Package scheduler fires cron-triggered workflows and resumes executions
// whose wait has elapsed.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/triggers/schedule"
)

const DefaultInterval = 15 * time.Second

// Engine is the part of the orchestrator the scheduler drives.
type Engine interface {
	Trigger(ctx context.Context, workflow *models.WorkflowDefinition, trigger string, input map[string]any) (string, bool, error)
	ResumeDue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler polls on a fixed interval. Each tick reloads the scheduled
// workflows, starts those whose cron activation is due and hands elapsed
// waits back to the engine. Cron state lives in memory: activations missed
// while no scheduler runs are skipped.
type Scheduler struct {
	workflows persistence.WorkflowRepository
	engine    Engine
	logger    *slog.Logger
	interval  time.Duration

	mu        sync.Mutex
	schedules map[string]*models.Schedule
	ticker    *time.Ticker
	done      chan bool
	started   bool
}

func New(workflows persistence.WorkflowRepository, engine Engine, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		workflows: workflows,
		engine:    engine,
		logger:    logger.With("module", "scheduler"),
		interval:  interval,
		schedules: make(map[string]*models.Schedule),
	}
}

// Start begins polling until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx, s.ticker, s.done)

	s.logger.InfoContext(ctx, "Scheduler started", "interval", s.interval)

	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.ticker.Stop()
	close(s.done)
	s.started = false

	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}

func (s *Scheduler) poll(ctx context.Context, ticker *time.Ticker, done chan bool) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick runs one polling round at now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	workflows, err := s.scheduledWorkflows(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load scheduled workflows", "error", err)
	} else {
		s.fireDue(ctx, workflows, now)
	}

	resumed, err := s.engine.ResumeDue(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to resume waiting executions", "error", err)
	}

	if resumed > 0 {
		s.logger.InfoContext(ctx, "Resumed waiting executions", "count", resumed)
	}
}

// Next returns the next activation of a scheduled workflow, if it is tracked.
func (s *Scheduler) Next(workflowID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[workflowID]
	if !ok {
		return time.Time{}, false
	}

	return sched.NextDueAt, true
}

func (s *Scheduler) fireDue(ctx context.Context, workflows []*models.WorkflowDefinition, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(workflows))

	for _, workflow := range workflows {
		seen[workflow.ID] = true
		expression := schedule.Expression(workflow.Trigger)

		sched, ok := s.schedules[workflow.ID]
		if !ok || sched.CronExpression != expression {
			created, err := models.NewSchedule(workflow.ID, expression, now)
			if err != nil {
				s.logger.WarnContext(ctx, "Skipping workflow with invalid schedule", "workflowId", workflow.ID, "error", err)

				continue
			}

			s.schedules[workflow.ID] = created

			continue
		}

		if !sched.IsDue(now) {
			continue
		}

		input := map[string]any{
			"workflowId":  workflow.ID,
			"scheduledAt": sched.NextDueAt.Format(time.RFC3339),
		}

		id, started, err := s.engine.Trigger(ctx, workflow, string(events.ScheduleTickEvent), input)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to start scheduled workflow", "workflowId", workflow.ID, "error", err)

			continue
		}

		if started {
			s.logger.InfoContext(ctx, "Scheduled workflow started", "workflowId", workflow.ID, "executionId", id, "dueAt", sched.NextDueAt)
		}

		sched.Advance(now)
	}

	for id := range s.schedules {
		if !seen[id] {
			delete(s.schedules, id)
		}
	}
}

func (s *Scheduler) scheduledWorkflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	var workflows []*models.WorkflowDefinition

	opts := persistence.ListWorkflowsOptions{
		ActiveOnly:  true,
		TriggerKind: models.TriggerScheduled,
		Limit:       persistence.MaxListLimit,
	}

	for {
		page, err := s.workflows.List(ctx, opts)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, page.Workflows...)
		opts.Offset += len(page.Workflows)

		if len(page.Workflows) == 0 || opts.Offset >= page.TotalCount {
			return workflows, nil
		}
	}
}
