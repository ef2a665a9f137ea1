package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestRecorder returns a recorder backed by a manual reader.
func newTestRecorder(t *testing.T) (MetricsRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown meter provider: %v", err)
		}
	})

	m, err := NewMetricsRecorderFromMeter(provider.Meter("elements"))
	require.NoError(t, err)
	return m, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value for datapoints carrying attr=value.
func sumFor(t *testing.T, m *metricdata.Metrics, attr, value string) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)

	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(attr)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder_UsesGlobalProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		_ = provider.Shutdown(context.Background())
	})

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordSave(t *testing.T) {
	m, reader := newTestRecorder(t)
	ctx := context.Background()

	m.RecordSave(ctx, "local", 20*time.Millisecond, 512, nil)
	m.RecordSave(ctx, "gcs", 40*time.Millisecond, 1024, nil)
	m.RecordSave(ctx, "gcs", time.Millisecond, 0, errors.New("upload failed"))

	rm := collectMetrics(t, reader)
	saves := findMetric(rm, "elements.checkpoint.saves")
	assert.Equal(t, int64(1), sumFor(t, saves, "backend", "local"))
	assert.Equal(t, int64(1), sumFor(t, saves, "backend", "gcs"))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "elements.checkpoint.errors"), "operation", "save"))

	size := findMetric(rm, "elements.checkpoint.save.size_bytes")
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range hist.DataPoints {
		total += dp.Sum
	}
	assert.Equal(t, int64(1536), total)

	require.NotNil(t, findMetric(rm, "elements.checkpoint.save.latency_ms"))
}

func TestRecordLoad(t *testing.T) {
	m, reader := newTestRecorder(t)
	ctx := context.Background()

	m.RecordLoad(ctx, "proxy", 5*time.Millisecond, nil)
	m.RecordLoad(ctx, "proxy", 5*time.Millisecond, errors.New("corrupt"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "elements.checkpoint.loads"), "backend", "proxy"))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "elements.checkpoint.errors"), "operation", "load"))

	latency := findMetric(rm, "elements.checkpoint.load.latency_ms")
	require.NotNil(t, latency)
	_, ok := latency.Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestRecordRetention(t *testing.T) {
	m, reader := newTestRecorder(t)
	ctx := context.Background()

	m.RecordRetention(ctx, "local", 2)
	m.RecordRetention(ctx, "local", 0)
	m.RecordRetention(ctx, "local", 1)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(3), sumFor(t, findMetric(rm, "elements.checkpoint.retention.removed"), "backend", "local"))
}
