package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every sequence span.
const TracerName = "appforge"

// SpanManager handles trace span lifecycle.
// Use NewSpanManager for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span for the entire run.
	StartRunSpan(ctx context.Context, kind, runID string) (context.Context, trace.Span)

	// StartStepSpan starts a child span for one step execution.
	StartStepSpan(ctx context.Context, step string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, recording err when non-nil.
	EndSpanWithError(span trace.Span, err error)
}

type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager backed by the global OTel tracer
// provider as configured at call time.
func NewSpanManager() SpanManager {
	return &otelSpanManager{tracer: otel.Tracer(TracerName)}
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, kind, runID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "appforge.run",
		trace.WithAttributes(
			attribute.String("flow.kind", kind),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartStepSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "appforge.step."+step,
		trace.WithAttributes(
			attribute.String("step", step),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
