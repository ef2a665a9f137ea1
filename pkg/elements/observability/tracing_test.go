package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestSpanManager(t *testing.T) (SpanManager, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
	})
	return NewSpanManagerFromProvider(tp), exporter
}

func attrString(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.Emit()
		}
	}
	return ""
}

func TestStartSaveSpan(t *testing.T) {
	sm, exporter := newTestSpanManager(t)

	_, span := sm.StartSaveSpan(context.Background(), "/ckpt/20240101T000000F000", true)
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanSave, spans[0].Name)
	assert.Equal(t, "/ckpt/20240101T000000F000", attrString(spans[0].Attributes, "checkpoint.path"))
	assert.Equal(t, "true", attrString(spans[0].Attributes, "checkpoint.write"))
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func TestKeySpanIsChildOfLoadSpan(t *testing.T) {
	sm, exporter := newTestSpanManager(t)

	ctx, load := sm.StartLoadSpan(context.Background(), "/ckpt/a")
	_, key := sm.StartKeySpan(ctx, "load", "model")
	sm.EndSpanWithError(key, nil)
	sm.EndSpanWithError(load, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	keySpan, loadSpan := spans[0], spans[1]
	assert.Equal(t, SpanKey, keySpan.Name)
	assert.Equal(t, SpanLoad, loadSpan.Name)
	assert.Equal(t, loadSpan.SpanContext.SpanID(), keySpan.Parent.SpanID())
	assert.Equal(t, "model", attrString(keySpan.Attributes, "checkpoint.key"))
}

func TestEndSpanWithError(t *testing.T) {
	sm, exporter := newTestSpanManager(t)

	_, span := sm.StartSaveSpan(context.Background(), "/ckpt/a", true)
	sm.EndSpanWithError(span, errors.New("write failed"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "write failed", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
}

func TestAddSpanEvent(t *testing.T) {
	sm, exporter := newTestSpanManager(t)

	ctx, span := sm.StartSaveSpan(context.Background(), "/ckpt/a", true)
	sm.AddSpanEvent(ctx, "shard written", attribute.Int("index", 3))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "shard written", spans[0].Events[0].Name)

	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "no span")
	})
}
