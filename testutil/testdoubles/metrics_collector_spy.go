package testdoubles

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

type metricKind int

const (
	kindDuration metricKind = iota
	kindCounter
	kindValue
)

// MetricRecord is one captured metrics call.
type MetricRecord struct {
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
	kind     metricKind
}

// MetricsCollectorSpy captures metrics calls. It implements docstore.ContextualMetricsCollector.
type MetricsCollectorSpy struct {
	mu      sync.Mutex
	records []MetricRecord
}

// NewMetricsCollectorSpy creates an empty MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.add(MetricRecord{Metric: metric, Duration: duration, Labels: maps.Clone(labels), kind: kindDuration})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.add(MetricRecord{Metric: metric, Labels: maps.Clone(labels), kind: kindCounter})
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.add(MetricRecord{Metric: metric, Value: value, Labels: maps.Clone(labels), kind: kindValue})
}

func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.RecordDuration(metric, duration, labels)
}

func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.RecordValue(metric, value, labels)
}

func (s *MetricsCollectorSpy) add(r MetricRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
}

// CounterRecords returns the captured counter increments for a metric.
func (s *MetricsCollectorSpy) CounterRecords(metric string) []MetricRecord {
	return s.filter(metric, kindCounter)
}

// DurationRecords returns the captured durations for a metric.
func (s *MetricsCollectorSpy) DurationRecords(metric string) []MetricRecord {
	return s.filter(metric, kindDuration)
}

// ValueRecords returns the captured values for a metric.
func (s *MetricsCollectorSpy) ValueRecords(metric string) []MetricRecord {
	return s.filter(metric, kindValue)
}

func (s *MetricsCollectorSpy) filter(metric string, kind metricKind) []MetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []MetricRecord
	for _, r := range s.records {
		if r.Metric == metric && r.kind == kind {
			out = append(out, r)
		}
	}

	return out
}

// HasCounterRecordForMetric starts a fluent chain to check a counter record.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{candidates: s.CounterRecords(metric)}
}

// HasDurationRecordForMetric starts a fluent chain to check a duration record.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{candidates: s.DurationRecords(metric)}
}

// Reset clears all captured records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}

// MetricRecordMatcher narrows down captured records by label. Assert is true if any record survives.
type MetricRecordMatcher struct {
	candidates []MetricRecord
}

// WithLabel keeps the records carrying the label with the given value.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	kept := m.candidates[:0:0]
	for _, r := range m.candidates {
		if r.Labels[key] == value {
			kept = append(kept, r)
		}
	}

	return &MetricRecordMatcher{candidates: kept}
}

// WithStatus keeps the records with the given status label.
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

// WithOperation keeps the records with the given operation label.
func (m *MetricRecordMatcher) WithOperation(operation string) *MetricRecordMatcher {
	return m.WithLabel("operation", operation)
}

// Count returns the number of matching records.
func (m *MetricRecordMatcher) Count() int {
	return len(m.candidates)
}

// Assert returns true if at least one record matched the whole chain.
func (m *MetricRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}

var _ docstore.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
