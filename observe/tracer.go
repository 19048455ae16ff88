package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OperationMeta describes a remote-call operation for telemetry purposes.
type OperationMeta struct {
	Namespace string // Cache namespace of the operation (e.g. "grade_answer")
	Name      string // Operation name (optional, defaults to Namespace)
	Version   string // Cache-format version (optional)
}

// ID returns namespace.name, or whichever of the two is set.
func (m OperationMeta) ID() string {
	switch {
	case m.Namespace != "" && m.Name != "" && m.Name != m.Namespace:
		return m.Namespace + "." + m.Name
	case m.Namespace != "":
		return m.Namespace
	default:
		return m.Name
	}
}

// SpanName returns the deterministic span name for this operation.
// Format: invoke.<id>
func (m OperationMeta) SpanName() string {
	return "invoke." + m.ID()
}

// SpanOutcome is recorded on a span when it ends.
type SpanOutcome struct {
	Outcome  string // success|degraded|failed
	Attempts int
	Cached   bool
	Err      error
}

// Tracer wraps OpenTelemetry tracing with per-invocation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one invocation.
	StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome.
	EndSpan(span trace.Span, outcome SpanOutcome)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with operation metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("op.id", meta.ID()),
	}
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("op.namespace", meta.Namespace))
	}
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("op.version", meta.Version))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span. Degraded and failed outcomes mark the span as an error.
func (t *tracerImpl) EndSpan(span trace.Span, outcome SpanOutcome) {
	span.SetAttributes(
		attribute.String("op.outcome", outcome.Outcome),
		attribute.Int("op.attempts", outcome.Attempts),
		attribute.Bool("op.cached", outcome.Cached),
	)
	if outcome.Err != nil {
		span.SetStatus(codes.Error, outcome.Err.Error())
		span.RecordError(outcome.Err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ SpanOutcome) {
	span.End()
}
