package client

import (
	"context"
	"time"

	"github.com/dukex/orderflow/pkg/models"
	"github.com/dukex/orderflow/pkg/services"
)

// Watcher re-fetches a page of executions while the server reports
// something in flight.
type Watcher struct {
	client *Client
	// Interval overrides the polling interval advertised by the server.
	Interval time.Duration
}

func NewWatcher(client *Client) *Watcher {
	return &Watcher{client: client}
}

// Watch calls onUpdate with every fetched page. It returns nil once no
// execution on the page is pending or running, or the error of a failed
// fetch, or ctx's error.
func (w *Watcher) Watch(
	ctx context.Context,
	workflowID string,
	page, limit int,
	onUpdate func(*services.ListExecutionsResponse),
) error {
	for {
		list, err := w.client.ListExecutions(ctx, workflowID, page, limit)
		if err != nil {
			return err
		}

		onUpdate(list)

		if !list.Polling.Active {
			return nil
		}

		timer := time.NewTimer(w.interval(list))

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *Watcher) interval(list *services.ListExecutionsResponse) time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}

	if list.Polling.IntervalSeconds > 0 {
		return time.Duration(list.Polling.IntervalSeconds) * time.Second
	}

	return models.PollInterval
}
