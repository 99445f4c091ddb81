// Package metrics implements the docstore and lending metrics interfaces on Prometheus.
package metrics

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

// ExemplarTraceIDLabel is the exemplar label carrying the trace id of the recording context.
const ExemplarTraceIDLabel = "trace_id"

// ErrNilRegisterer is returned when New is called without a registerer.
var ErrNilRegisterer = errors.New("prometheus registerer must not be nil")

// DefaultBuckets suit operations between a millisecond and a few seconds.
var DefaultBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

type family[V any] struct {
	vec        V
	labelNames []string
}

// Collector implements docstore.ContextualMetricsCollector on a Prometheus registerer.
//
// Vectors are registered lazily by metric name on first use. The label names of that first
// call are fixed for the metric: later calls fill absent labels with "" and drop unknown ones.
// A metric whose registration fails (invalid name, name taken by another type) is not recorded.
type Collector struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	histograms map[string]*family[*prometheus.HistogramVec]
	counters   map[string]*family[*prometheus.CounterVec]
	gauges     map[string]*family[*prometheus.GaugeVec]
	failed     map[string]error
}

// Option defines a functional option for configuring Collector.
type Option func(*Collector)

// WithNamespace prefixes every metric name with namespace and an underscore.
func WithNamespace(namespace string) Option {
	return func(c *Collector) {
		c.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets in seconds.
func WithBuckets(buckets []float64) Option {
	return func(c *Collector) {
		if len(buckets) > 0 {
			c.buckets = buckets
		}
	}
}

// New creates a collector registering on registerer.
func New(registerer prometheus.Registerer, options ...Option) (*Collector, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	c := &Collector{
		registerer: registerer,
		buckets:    DefaultBuckets,
		histograms: make(map[string]*family[*prometheus.HistogramVec]),
		counters:   make(map[string]*family[*prometheus.CounterVec]),
		gauges:     make(map[string]*family[*prometheus.GaugeVec]),
		failed:     make(map[string]error),
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

func (c *Collector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.RecordDurationContext(context.Background(), metric, duration, labels)
}

// RecordDurationContext observes duration in seconds, with the trace id as exemplar when ctx
// carries a sampled span.
func (c *Collector) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	f := c.histogram(metric, labels)
	if f == nil {
		return
	}

	observer := f.vec.With(labelValues(f.labelNames, labels))
	if exemplar, ok := exemplarOf(ctx); ok {
		if eo, ok := observer.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(duration.Seconds(), exemplar)
			return
		}
	}

	observer.Observe(duration.Seconds())
}

func (c *Collector) IncrementCounter(metric string, labels map[string]string) {
	c.IncrementCounterContext(context.Background(), metric, labels)
}

// IncrementCounterContext adds one, with the trace id as exemplar when ctx carries a sampled span.
func (c *Collector) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	f := c.counter(metric, labels)
	if f == nil {
		return
	}

	counter := f.vec.With(labelValues(f.labelNames, labels))
	if exemplar, ok := exemplarOf(ctx); ok {
		if ea, ok := counter.(prometheus.ExemplarAdder); ok {
			ea.AddWithExemplar(1, exemplar)
			return
		}
	}

	counter.Inc()
}

func (c *Collector) RecordValue(metric string, value float64, labels map[string]string) {
	c.RecordValueContext(context.Background(), metric, value, labels)
}

func (c *Collector) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	if f := c.gauge(metric, labels); f != nil {
		f.vec.With(labelValues(f.labelNames, labels)).Set(value)
	}
}

// RegistrationError returns why metric could not be registered, or nil.
func (c *Collector) RegistrationError(metric string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.failed[c.fullName(metric)]
}

func (c *Collector) histogram(metric string, labels map[string]string) *family[*prometheus.HistogramVec] {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.fullName(metric)
	if f, ok := c.histograms[name]; ok {
		return f
	}

	if _, failed := c.failed[name]; failed {
		return nil
	}

	names := labelNames(labels)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Duration of " + metric + " in seconds",
		Buckets: c.buckets,
	}, names)

	if !c.register(name, vec) {
		return nil
	}

	f := &family[*prometheus.HistogramVec]{vec: vec, labelNames: names}
	c.histograms[name] = f

	return f
}

func (c *Collector) counter(metric string, labels map[string]string) *family[*prometheus.CounterVec] {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.fullName(metric)
	if f, ok := c.counters[name]; ok {
		return f
	}

	if _, failed := c.failed[name]; failed {
		return nil
	}

	names := labelNames(labels)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "Total of " + metric,
	}, names)

	if !c.register(name, vec) {
		return nil
	}

	f := &family[*prometheus.CounterVec]{vec: vec, labelNames: names}
	c.counters[name] = f

	return f
}

func (c *Collector) gauge(metric string, labels map[string]string) *family[*prometheus.GaugeVec] {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.fullName(metric)
	if f, ok := c.gauges[name]; ok {
		return f
	}

	if _, failed := c.failed[name]; failed {
		return nil
	}

	names := labelNames(labels)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: "Last value of " + metric,
	}, names)

	if !c.register(name, vec) {
		return nil
	}

	f := &family[*prometheus.GaugeVec]{vec: vec, labelNames: names}
	c.gauges[name] = f

	return f
}

// register must be called with c.mu held.
func (c *Collector) register(name string, collector prometheus.Collector) bool {
	if err := c.registerer.Register(collector); err != nil {
		c.failed[name] = err
		return false
	}

	return true
}

func (c *Collector) fullName(metric string) string {
	if c.namespace == "" {
		return metric
	}

	return c.namespace + "_" + metric
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func labelValues(names []string, labels map[string]string) prometheus.Labels {
	values := make(prometheus.Labels, len(names))
	for _, name := range names {
		values[name] = labels[name]
	}

	return values
}

func exemplarOf(ctx context.Context) (prometheus.Labels, bool) {
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsValid() || !spanContext.IsSampled() {
		return nil, false
	}

	return prometheus.Labels{ExemplarTraceIDLabel: spanContext.TraceID().String()}, true
}

var _ docstore.ContextualMetricsCollector = (*Collector)(nil)
