package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "tpa-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, "tpa-test", mp.GetConfig().ServiceName)
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestInstruments_NilMeter(t *testing.T) {
	_, err := telemetry.NewCounter(nil, "c", "", "1")
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)

	_, err = telemetry.NewHistogram(nil, telemetry.HistogramOpts{Name: "h"})
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Equal(t, "NewInstrument: meter cannot be nil", err.Error())
}

func TestInstruments_Record(t *testing.T) {
	ctx := context.Background()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter("test")

	counter, err := telemetry.NewCounter(meter, "http_requests_total", "requests", "{request}")
	require.NoError(t, err)
	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "http_request_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)

	counter.Inc(ctx, telemetry.AttrHTTPMethod.String("POST"))
	counter.Add(ctx, 2, telemetry.AttrHTTPMethod.String("POST"))
	hist.RecordDuration(ctx, 30*time.Millisecond, telemetry.AttrHTTPRoute.String("/api/v1/tpa/computation"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	sum, ok := byName["http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	h, ok := byName["http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)
	assert.Equal(t, telemetry.HTTPDurationBuckets, h.DataPoints[0].Bounds)
}
