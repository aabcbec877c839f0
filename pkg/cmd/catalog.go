// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/catalog/builtin"
	"github.com/dukex/orderflow/pkg/notify"
	"github.com/dukex/orderflow/pkg/records"
)

const (
	collaboratorRetries    = 3
	collaboratorRetryDelay = 500 * time.Millisecond
)

// Collaborators holds the outside systems the native actions call.
type Collaborators struct {
	RedisURL         string
	RecordsAPIURL    string
	NotifyWebhookURL string
}

// NewDependencies builds the action collaborators. An empty URL selects the
// in-process or log-only variant.
func NewDependencies(ctx context.Context, logger *slog.Logger, c Collaborators) (builtin.Dependencies, func() error, error) {
	deps := builtin.Dependencies{}
	closer := func() error { return nil }

	if c.RedisURL != "" {
		recorder, err := assignment.NewRedisRecorder(ctx, c.RedisURL, logger)
		if err != nil {
			return deps, closer, fmt.Errorf("failed to connect assignment recorder: %w", err)
		}

		deps.Recorder = recorder
		closer = recorder.Close
	} else {
		logger.WarnContext(ctx, "REDIS_URL not set, assignments are kept in memory")

		deps.Recorder = assignment.NewMemoryRecorder()
	}

	if c.RecordsAPIURL != "" {
		deps.Updater = records.NewAPIClient(c.RecordsAPIURL).WithRetry(collaboratorRetries, collaboratorRetryDelay)
	} else {
		deps.Updater = records.NewLogUpdater(logger)
	}

	if c.NotifyWebhookURL != "" {
		deps.Sender = notify.NewWebhookSender(c.NotifyWebhookURL, logger).WithRetry(collaboratorRetries, collaboratorRetryDelay)
	} else {
		deps.Sender = notify.NewLogSender(logger)
	}

	return deps, closer, nil
}

// NewCatalog registers the native kinds and the plugins found in
// pluginsPath, then freezes the catalog.
func NewCatalog(logger *slog.Logger, deps builtin.Dependencies, pluginsPath string) (*catalog.Catalog, error) {
	c := catalog.New(logger)

	if err := builtin.Register(c, deps); err != nil {
		return nil, err
	}

	if pluginsPath != "" {
		if err := c.LoadActionPlugins(pluginsPath); err != nil {
			return nil, fmt.Errorf("failed to load action plugins: %w", err)
		}
	}

	c.Freeze()

	return c, nil
}
