package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-lending-go/docstore/oteladapters"
)

func newMeterFixture() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm), "Failed to collect metrics")

	return rm
}

func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return metricdata.Metrics{}
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// arrange
	collector, reader := newMeterFixture()
	labels := map[string]string{"operation": "get", "status": "success"}

	// act
	collector.RecordDuration("docstore_operation_duration_seconds", 150*time.Millisecond, labels)

	// assert
	histogram, ok := findMetric(t, collect(t, reader), "docstore_operation_duration_seconds").Data.(metricdata.Histogram[float64])
	require.True(t, ok, "Should be a float64 histogram")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expected := attribute.NewSet(attribute.String("operation", "get"), attribute.String("status", "success"))
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expected), "Attributes should match")
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// arrange
	collector, reader := newMeterFixture()
	labels := map[string]string{"operation": "borrow", "status": "success"}

	// act
	collector.IncrementCounter("lending_operation_calls_total", labels)
	collector.IncrementCounterContext(context.Background(), "lending_operation_calls_total", labels)
	collector.IncrementCounter("lending_operation_calls_total", map[string]string{"operation": "borrow", "status": "error"})

	// assert
	sum, ok := findMetric(t, collect(t, reader), "lending_operation_calls_total").Data.(metricdata.Sum[int64])
	require.True(t, ok, "Should be an int64 sum")
	require.Len(t, sum.DataPoints, 2)

	total := int64(0)
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// arrange
	collector, reader := newMeterFixture()

	// act
	collector.RecordValue("docstore_documents_returned", 4, nil)
	collector.RecordValueContext(context.Background(), "docstore_documents_returned", 7, nil)

	// assert
	gauge, ok := findMetric(t, collect(t, reader), "docstore_documents_returned").Data.(metricdata.Gauge[float64])
	require.True(t, ok, "Should be a float64 gauge")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 7.0, gauge.DataPoints[0].Value, 0.0001, "Gauge should keep the last value")
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	// arrange
	collector, reader := newMeterFixture()
	var wg sync.WaitGroup

	// act
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("concurrent_total", map[string]string{"k": "v"})
		}()
	}
	wg.Wait()

	// assert
	sum, ok := findMetric(t, collect(t, reader), "concurrent_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(50), sum.DataPoints[0].Value)
}
