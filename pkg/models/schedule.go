package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a cron expression cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule expression")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule tracks the next due time of a scheduled workflow trigger.
// Uses the standard 5-field cron format (minute hour day month weekday).
type Schedule struct {
	WorkflowID     string    `json:"workflowId"`
	CronExpression string    `json:"cronExpression"`
	NextDueAt      time.Time `json:"nextDueAt"`

	schedule cron.Schedule
}

// ParseCron validates a cron expression.
func ParseCron(expression string) (cron.Schedule, error) {
	if expression == "" {
		return nil, ErrInvalidSchedule
	}

	schedule, err := cronParser.Parse(expression)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, err)
	}

	return schedule, nil
}

// NewSchedule creates a Schedule whose first due time follows now.
func NewSchedule(workflowID, expression string, now time.Time) (*Schedule, error) {
	parsed, err := ParseCron(expression)
	if err != nil {
		return nil, err
	}

	return &Schedule{
		WorkflowID:     workflowID,
		CronExpression: expression,
		NextDueAt:      parsed.Next(now),
		schedule:       parsed,
	}, nil
}

// IsDue reports whether the schedule should fire at now.
func (s *Schedule) IsDue(now time.Time) bool {
	return !s.NextDueAt.After(now)
}

// Advance moves NextDueAt to the first activation after now. Missed
// activations are collapsed into one.
func (s *Schedule) Advance(now time.Time) {
	s.NextDueAt = s.schedule.Next(now)
}
