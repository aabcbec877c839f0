package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/engine"
	"github.com/dukex/orderflow/pkg/eventbus"
	"github.com/dukex/orderflow/pkg/persistence"
	"github.com/dukex/orderflow/pkg/scheduler"
	"github.com/dukex/orderflow/pkg/tracker"
	"github.com/dukex/orderflow/pkg/validation"
)

// RuntimeConfig is everything a process needs to run workflows.
type RuntimeConfig struct {
	Service       string
	DatabaseURL   string
	EventBus      string
	PluginsPath   string
	Collaborators Collaborators
	MaxConcurrent int64
	CacheTTL      time.Duration
	OTelEnabled   bool
}

// Runtime wires persistence, the event bus, the catalog and the engine.
type Runtime struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Catalog     *catalog.Catalog
	Validator   *validation.Validator
	Engine      *engine.Orchestrator

	closers []func(context.Context) error
}

func NewRuntime(ctx context.Context, logger *slog.Logger, cfg RuntimeConfig) (*Runtime, error) {
	rt := &Runtime{Logger: logger}

	tracer, shutdownTracer, err := NewTracer(ctx, cfg.OTelEnabled, cfg.Service)
	if err != nil {
		return nil, err
	}

	rt.closers = append(rt.closers, shutdownTracer)

	deps, closeDeps, err := NewDependencies(ctx, logger, cfg.Collaborators)
	if err != nil {
		return nil, rt.fail(ctx, err)
	}

	rt.closers = append(rt.closers, func(context.Context) error { return closeDeps() })

	if rt.Catalog, err = NewCatalog(logger, deps, cfg.PluginsPath); err != nil {
		return nil, rt.fail(ctx, err)
	}

	if rt.Persistence, err = NewPersistence(ctx, logger, cfg.DatabaseURL); err != nil {
		return nil, rt.fail(ctx, err)
	}

	rt.closers = append(rt.closers, rt.Persistence.Close)

	if rt.EventBus, err = NewEventBus(cfg.EventBus, logger); err != nil {
		return nil, rt.fail(ctx, err)
	}

	rt.closers = append(rt.closers, func(context.Context) error { return rt.EventBus.Close() })

	rt.Validator = validation.New(rt.Catalog)
	rt.Engine = engine.New(
		rt.Persistence,
		rt.Catalog,
		tracker.New(rt.Persistence.ExecutionRepository(), rt.EventBus, logger),
		logger,
		engine.Options{MaxConcurrent: cfg.MaxConcurrent, CacheTTL: cfg.CacheTTL, Tracer: tracer},
	)

	return rt, nil
}

// StartWorker consumes trigger events from the bus and starts the scheduler.
// The returned scheduler must be stopped before Close.
func (r *Runtime) StartWorker(ctx context.Context, interval time.Duration) (*scheduler.Scheduler, error) {
	if err := r.Engine.Subscribe(r.EventBus); err != nil {
		return nil, err
	}

	if err := r.EventBus.Subscribe(ctx); err != nil {
		return nil, err
	}

	sched := scheduler.New(r.Persistence.WorkflowRepository(), r.Engine, r.Logger, interval)

	return sched, sched.Start(ctx)
}

// Close waits for running executions, then releases everything in reverse
// order of creation.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	if r.Engine != nil {
		if err := r.Engine.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) fail(ctx context.Context, err error) error {
	return errors.Join(err, r.Close(ctx))
}
