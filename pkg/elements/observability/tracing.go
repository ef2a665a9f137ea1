package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("elements")

// Span names.
const (
	SpanSave = "elements.checkpoint.save"
	SpanLoad = "elements.checkpoint.load"
	SpanKey  = "elements.checkpoint.key"
)

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartSaveSpan starts a span for a snapshot save.
	StartSaveSpan(ctx context.Context, path string, write bool) (context.Context, trace.Span)

	// StartLoadSpan starts a span for a snapshot load.
	StartLoadSpan(ctx context.Context, path string) (context.Context, trace.Span)

	// StartKeySpan starts a child span for one saveable.
	StartKeySpan(ctx context.Context, op, key string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{tracer: tracer}
}

// NewSpanManagerFromProvider returns a SpanManager on a specific provider.
func NewSpanManagerFromProvider(tp trace.TracerProvider) SpanManager {
	return &otelSpanManager{tracer: tp.Tracer("elements")}
}

// StartSaveSpan starts a span for a snapshot save.
func (m *otelSpanManager) StartSaveSpan(ctx context.Context, path string, write bool) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, SpanSave,
		trace.WithAttributes(
			attribute.String("checkpoint.path", path),
			attribute.Bool("checkpoint.write", write),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartLoadSpan starts a span for a snapshot load.
func (m *otelSpanManager) StartLoadSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, SpanLoad,
		trace.WithAttributes(
			attribute.String("checkpoint.path", path),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartKeySpan starts a child span for one saveable.
func (m *otelSpanManager) StartKeySpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, SpanKey,
		trace.WithAttributes(
			attribute.String("checkpoint.operation", op),
			attribute.String("checkpoint.key", key),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
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

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
