package cmd

import (
	"context"

	"github.com/dukex/orderflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer exports spans over OTLP when enabled. Otherwise it returns the
// global no-op tracer.
func NewTracer(ctx context.Context, enabled bool, service string) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return otelhelper.Tracer(service), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, service)
}
