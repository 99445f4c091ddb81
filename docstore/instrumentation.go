package docstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// MetricOperationDuration tracks the duration of store operations in seconds.
	MetricOperationDuration = "docstore_operation_duration_seconds"

	// MetricOperations counts store operations by outcome.
	MetricOperations = "docstore_operations_total"

	// MetricConcurrencyConflicts counts conditional writes that lost a race.
	MetricConcurrencyConflicts = "docstore_concurrency_conflicts_total"

	// MetricDatabaseErrors counts operations that failed for technical reasons.
	MetricDatabaseErrors = "docstore_database_errors_total"

	// MetricDocumentsReturned records how many documents a find returned.
	MetricDocumentsReturned = "docstore_documents_returned"

	OperationGet    = "get"
	OperationPut    = "put"
	OperationFind   = "find"
	OperationCreate = "create"

	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusConflict = "conflict"
	StatusCanceled = "canceled"
	StatusTimeout  = "timeout"
	StatusError    = "error"

	AttrEngine     = "engine"
	AttrOperation  = "operation"
	AttrCollection = "collection"
	AttrStatus     = "status"
	AttrDurationMS = "duration_ms"
	AttrError      = "error"
	AttrDocumentID = "document_id"
	AttrExpect     = "expect"
	AttrCount      = "count"

	spanNamePrefix          = "docstore."
	logMsgOperation         = "docstore operation: "
	logMsgConcurrencyFailed = "concurrency conflict detected"
	logMsgOperationFailed   = "docstore operation failed"
)

// Instrumentation bundles the optional observability hooks of an engine.
// A zero Instrumentation is valid and records nothing.
type Instrumentation struct {
	Engine           string
	Logger           Logger
	ContextualLogger ContextualLogger
	Metrics          MetricsCollector
	Tracing          TracingCollector
}

// Observation tracks one running store operation.
type Observation struct {
	inst       *Instrumentation
	ctx        context.Context
	span       SpanContext
	operation  string
	collection string
	start      time.Time
}

// Observe starts observing an operation. The returned context carries the tracing span if any.
func (i *Instrumentation) Observe(ctx context.Context, operation, collection string) (context.Context, *Observation) {
	o := &Observation{
		inst:       i,
		operation:  operation,
		collection: collection,
		start:      time.Now(),
	}

	if i.Tracing != nil {
		ctx, o.span = i.Tracing.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
			AttrEngine:     i.Engine,
			AttrOperation:  operation,
			AttrCollection: collection,
		})
	}

	o.ctx = ctx

	return ctx, o
}

// Finish records the outcome of the operation. Extra args are key/value pairs added to the log line.
func (o *Observation) Finish(err error, args ...any) {
	duration := time.Since(o.start)
	status := StatusOf(err)

	o.recordMetrics(status, duration)
	o.finishSpan(status, duration, err)
	o.log(status, duration, err, args...)
}

// RecordCount records the number of documents returned by a find.
func (o *Observation) RecordCount(count int) {
	if o.inst.Metrics == nil {
		return
	}

	labels := o.labels(StatusSuccess)
	if contextual, ok := o.inst.Metrics.(ContextualMetricsCollector); ok {
		contextual.RecordValueContext(o.ctx, MetricDocumentsReturned, float64(count), labels)
		return
	}

	o.inst.Metrics.RecordValue(MetricDocumentsReturned, float64(count), labels)
}

// StatusOf classifies an operation error into a status label.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrConcurrencyConflict):
		return StatusConflict
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}

func (o *Observation) labels(status string) map[string]string {
	return map[string]string{
		AttrEngine:     o.inst.Engine,
		AttrOperation:  o.operation,
		AttrCollection: o.collection,
		AttrStatus:     status,
	}
}

func (o *Observation) recordMetrics(status string, duration time.Duration) {
	collector := o.inst.Metrics
	if collector == nil {
		return
	}

	labels := o.labels(status)
	contextual, isContextual := collector.(ContextualMetricsCollector)

	increment := func(metric string) {
		if isContextual {
			contextual.IncrementCounterContext(o.ctx, metric, labels)
			return
		}
		collector.IncrementCounter(metric, labels)
	}

	if isContextual {
		contextual.RecordDurationContext(o.ctx, MetricOperationDuration, duration, labels)
	} else {
		collector.RecordDuration(MetricOperationDuration, duration, labels)
	}

	increment(MetricOperations)

	switch status {
	case StatusConflict:
		increment(MetricConcurrencyConflicts)
	case StatusError:
		increment(MetricDatabaseErrors)
	}
}

func (o *Observation) finishSpan(status string, duration time.Duration, err error) {
	if o.inst.Tracing == nil || o.span == nil {
		return
	}

	attrs := map[string]string{
		AttrStatus:     status,
		AttrDurationMS: fmt.Sprintf("%.2f", ToMilliseconds(duration)),
	}

	if err != nil {
		attrs[AttrError] = err.Error()
	}

	o.inst.Tracing.FinishSpan(o.span, status, attrs)
}

func (o *Observation) log(status string, duration time.Duration, err error, args ...any) {
	allArgs := []any{
		AttrEngine, o.inst.Engine,
		AttrCollection, o.collection,
		AttrDurationMS, ToMilliseconds(duration),
	}
	allArgs = append(allArgs, args...)

	switch status {
	case StatusSuccess, StatusNotFound:
		o.logDebug(logMsgOperation+o.operation, allArgs...)

	case StatusConflict:
		o.logInfo(logMsgConcurrencyFailed, append(allArgs, AttrOperation, o.operation)...)

	default:
		o.logError(logMsgOperationFailed, append(allArgs, AttrOperation, o.operation, AttrError, err.Error())...)
	}
}

func (o *Observation) logDebug(msg string, args ...any) {
	if o.inst.ContextualLogger != nil {
		o.inst.ContextualLogger.DebugContext(o.ctx, msg, args...)
	}

	if o.inst.Logger != nil {
		o.inst.Logger.Debug(msg, args...)
	}
}

func (o *Observation) logInfo(msg string, args ...any) {
	if o.inst.ContextualLogger != nil {
		o.inst.ContextualLogger.InfoContext(o.ctx, msg, args...)
	}

	if o.inst.Logger != nil {
		o.inst.Logger.Info(msg, args...)
	}
}

func (o *Observation) logError(msg string, args ...any) {
	if o.inst.ContextualLogger != nil {
		o.inst.ContextualLogger.ErrorContext(o.ctx, msg, args...)
	}

	if o.inst.Logger != nil {
		o.inst.Logger.Error(msg, args...)
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func ToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
