// Package rtrace wraps the per-frame OpenTelemetry span the frame orchestrator
// opens around recording and submission. Tracing is optional: when the host
// never calls Configure, every Start returns a no-op span so the render core
// never forces an OTel SDK dependency on a host that doesn't want one.
package rtrace

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = noopTracer{}

// Configure installs a real tracer (typically from an otel SDK TracerProvider
// configured by the host binary). Grounded on the otel/sdk usage in the
// corpus's golang.org/x/exp/event/sample/otel module.
func Configure(t trace.Tracer) {
	if t != nil {
		tracer = t
	}
}

// Span wraps trace.Span so callers don't need to import otel/trace directly.
type Span struct {
	span trace.Span
}

// End finishes the span.
func (s Span) End() {
	if s.span != nil {
		s.span.End()
	}
}

// Start opens a span named `name` under ctx.
func Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, Span{span: span}
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{ trace.Span }

func (noopSpan) End(...trace.SpanEndOption) {}
