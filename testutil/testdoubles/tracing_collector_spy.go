package testdoubles

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

// SpySpanContext records the status and attributes set on a span.
type SpySpanContext struct {
	mu         sync.Mutex
	status     string
	attributes map[string]string
}

func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	c.attributes[key] = value
}

// SpanRecord is one captured span.
type SpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
	span            *SpySpanContext
}

// TracingCollectorSpy captures spans. It implements docstore.TracingCollector.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpanRecord
}

// NewTracingCollectorSpy creates an empty TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, docstore.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span := &SpySpanContext{}
	s.spans = append(s.spans, &SpanRecord{
		Name:            name,
		StartAttributes: maps.Clone(attrs),
		span:            span,
	})

	return ctx, span
}

func (s *TracingCollectorSpy) FinishSpan(spanCtx docstore.SpanContext, status string, attrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.spans {
		if record.span == spanCtx {
			record.Status = status
			record.EndAttributes = maps.Clone(attrs)
			record.Finished = true
			return
		}
	}
}

// Spans returns copies of all captured spans.
func (s *TracingCollectorSpy) Spans() []SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpanRecord, 0, len(s.spans))
	for _, record := range s.spans {
		out = append(out, *record)
	}

	return out
}

// SpansNamed returns the captured spans with the given name.
func (s *TracingCollectorSpy) SpansNamed(name string) []SpanRecord {
	var out []SpanRecord
	for _, record := range s.Spans() {
		if record.Name == name {
			out = append(out, record)
		}
	}

	return out
}

var _ docstore.TracingCollector = (*TracingCollectorSpy)(nil)
