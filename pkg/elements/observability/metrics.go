package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records checkpoint metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSave records a snapshot save with its duration, payload size
	// and error status.
	RecordSave(ctx context.Context, backend string, duration time.Duration, sizeBytes int64, err error)

	// RecordLoad records a snapshot load.
	RecordLoad(ctx context.Context, backend string, duration time.Duration, err error)

	// RecordRetention records snapshots removed by retention cleanup.
	RecordRetention(ctx context.Context, backend string, removed int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	saves       metric.Int64Counter
	saveLatency metric.Float64Histogram
	saveSize    metric.Int64Histogram
	loads       metric.Int64Counter
	loadLatency metric.Float64Histogram
	failures    metric.Int64Counter
	removed     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter("elements"))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	saves, err := meter.Int64Counter("elements.checkpoint.saves",
		metric.WithDescription("Number of snapshot saves"),
	)
	if err != nil {
		return nil, err
	}

	saveLatency, err := meter.Float64Histogram("elements.checkpoint.save.latency_ms",
		metric.WithDescription("Snapshot save latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	saveSize, err := meter.Int64Histogram("elements.checkpoint.save.size_bytes",
		metric.WithDescription("Encoded snapshot size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	loads, err := meter.Int64Counter("elements.checkpoint.loads",
		metric.WithDescription("Number of snapshot loads"),
	)
	if err != nil {
		return nil, err
	}

	loadLatency, err := meter.Float64Histogram("elements.checkpoint.load.latency_ms",
		metric.WithDescription("Snapshot load latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("elements.checkpoint.errors",
		metric.WithDescription("Number of failed saves and loads"),
	)
	if err != nil {
		return nil, err
	}

	removed, err := meter.Int64Counter("elements.checkpoint.retention.removed",
		metric.WithDescription("Number of snapshots removed by retention"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		saves:       saves,
		saveLatency: saveLatency,
		saveSize:    saveSize,
		loads:       loads,
		loadLatency: loadLatency,
		failures:    failures,
		removed:     removed,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderFromMeter returns a MetricsRecorder on a specific
// meter instead of the global provider.
func NewMetricsRecorderFromMeter(meter metric.Meter) (MetricsRecorder, error) {
	return newOtelMetrics(meter)
}

// RecordSave records a snapshot save.
func (m *otelMetrics) RecordSave(ctx context.Context, backend string, duration time.Duration, sizeBytes int64, err error) {
	attrs := metric.WithAttributes(attribute.String("backend", backend))
	if err != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("operation", "save"),
		))
		return
	}
	m.saves.Add(ctx, 1, attrs)
	m.saveLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.saveSize.Record(ctx, sizeBytes, attrs)
}

// RecordLoad records a snapshot load.
func (m *otelMetrics) RecordLoad(ctx context.Context, backend string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("backend", backend))
	if err != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("operation", "load"),
		))
		return
	}
	m.loads.Add(ctx, 1, attrs)
	m.loadLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordRetention records retention removals.
func (m *otelMetrics) RecordRetention(ctx context.Context, backend string, removed int) {
	if removed <= 0 {
		return
	}
	m.removed.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("backend", backend)))
}
