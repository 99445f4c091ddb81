package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

const (
	// OperationDurationMetric tracks lending operation duration.
	OperationDurationMetric = "lending_operation_duration_seconds"

	// OperationCallsMetric tracks total lending operation calls.
	OperationCallsMetric = "lending_operation_calls_total"

	// OperationRejectedMetric tracks operations refused by a lending rule (not found, limit reached, ...).
	OperationRejectedMetric = "lending_rejected_operations_total"

	// OperationCanceledMetric tracks canceled operations.
	OperationCanceledMetric = "lending_canceled_operations_total"

	// OperationTimeoutMetric tracks timed out operations.
	OperationTimeoutMetric = "lending_timeout_operations_total"

	// OperationConcurrencyConflictMetric tracks operations that gave up on a revision race.
	OperationConcurrencyConflictMetric = "lending_concurrency_conflicts_total"

	// RetriesMetric tracks retry attempts of revision-conditioned writes.
	//
	// Labels:
	//   - operation: the mutation being retried (e.g., "decrement_available")
	//   - attempt_number: which retry attempt (1, 2, 3, 4)
	//   - error_type: category of error causing retry (e.g., "concurrency_conflict")
	RetriesMetric = "lending_retries_total"

	// RetryDelayMetric tracks the backoff delays before retries.
	RetryDelayMetric = "lending_retry_delay_seconds"

	// MaxRetriesReachedMetric tracks mutations that exhausted their attempts.
	MaxRetriesReachedMetric = "lending_max_retries_reached_total"

	// ClampedReturnsMetric tracks returns whose copy count was already at total_copies.
	ClampedReturnsMetric = "lending_clamped_returns_total"

	// ReconciledEntriesMetric tracks loan ids re-linked or dropped by the reconciliation sweep.
	ReconciledEntriesMetric = "lending_reconciled_entries_total"

	// StatusSuccess indicates successful completion.
	StatusSuccess = "success"

	// StatusIdempotent indicates no state change was needed.
	StatusIdempotent = "idempotent"

	// StatusRejected indicates a lending rule refused the operation.
	StatusRejected = "rejected"

	// StatusError indicates a technical failure.
	StatusError = "error"

	// StatusCanceled indicates the operation was canceled due to context cancellation.
	StatusCanceled = "canceled"

	// StatusTimeout indicates the operation timed out due to context deadline exceeded.
	StatusTimeout = "timeout"

	// StatusConcurrencyConflict indicates the operation failed due to optimistic concurrency control.
	StatusConcurrencyConflict = "concurrency_conflict"

	LogMsgOperationStarted   = "lending operation started"
	LogMsgOperationCompleted = "lending operation completed"
	LogMsgOperationRejected  = "lending operation rejected"
	LogMsgOperationFailed    = "lending operation failed"
	LogMsgCompensation       = "compensating partial borrow"
	LogMsgCompensationFailed = "compensation failed, reconciliation will repair the student list"
	LogMsgClampedReturn      = "returned copy not counted, book already has all copies available"
	LogMsgReconciled         = "student loan list reconciled"

	LogAttrOperation       = "operation"
	LogAttrStatus          = "status"
	LogAttrDurationMS      = "duration_ms"
	LogAttrBusinessOutcome = "business_outcome"
	LogAttrError           = "error"
	LogAttrBookID          = "book_id"
	LogAttrStudentID       = "student_id"
	LogAttrLoanID          = "loan_id"
	LogAttrReason          = "reason"
	LogAttrReinserted      = "reinserted"
	LogAttrDropped         = "dropped"

	LabelAttemptNumber  = "attempt_number"
	LabelErrorType      = "error_type"
	LabelFinalErrorType = "final_error_type"

	// SpanNameOperation prefixes the tracing span name of lending operations.
	SpanNameOperation = "lending."
)

// Interface aliases for convenience when using lending observability.
// These match the docstore observability interfaces for consistency.

// MetricsCollector interface for collecting lending metrics.
type MetricsCollector = docstore.MetricsCollector

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
type ContextualMetricsCollector = docstore.ContextualMetricsCollector

// TracingCollector interface for distributed tracing of lending operations.
type TracingCollector = docstore.TracingCollector

// SpanContext represents an active tracing span.
type SpanContext = docstore.SpanContext

// ContextualLogger interface for context-aware logging.
type ContextualLogger = docstore.ContextualLogger

// Logger interface for basic logging.
type Logger = docstore.Logger

// StatusOf classifies the outcome of an operation into a status label.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case IsCancellationError(err):
		return StatusCanceled
	case IsTimeoutError(err):
		return StatusTimeout
	case IsConcurrencyConflictError(err):
		return StatusConcurrencyConflict
	case core.IsBusinessFailure(err):
		return StatusRejected
	default:
		return StatusError
	}
}

// IsCancellationError reports whether err stems from a canceled context.
func IsCancellationError(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeoutError reports whether err stems from an exceeded deadline.
func IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsConcurrencyConflictError reports whether err is a lost revision race, retried or not.
func IsConcurrencyConflictError(err error) bool {
	return errors.Is(err, core.ErrConflict) || errors.Is(err, docstore.ErrConcurrencyConflict)
}

// BuildOperationLabels creates standard metric labels for lending operations.
func BuildOperationLabels(operation, status string) map[string]string {
	return map[string]string{
		LogAttrOperation: operation,
		LogAttrStatus:    status,
	}
}

// BuildRetryLabels creates standard metric labels for retry operations.
func BuildRetryLabels(operation string, attemptNumber int, errorType string) map[string]string {
	return map[string]string{
		LogAttrOperation:   operation,
		LabelAttemptNumber: strconv.Itoa(attemptNumber),
		LabelErrorType:     errorType,
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with precision.
func ToMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// IncrementCounter increments metric on a contextual collector if possible. A nil collector is ignored.
func IncrementCounter(ctx context.Context, collector MetricsCollector, metric string, labels map[string]string) {
	if collector == nil {
		return
	}

	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	collector.IncrementCounter(metric, labels)
}

// RecordOperationMetrics records duration and call count of an operation, plus the outcome
// specific counter for everything that is not a plain success.
func RecordOperationMetrics(
	ctx context.Context,
	collector MetricsCollector,
	operation string,
	status string,
	duration time.Duration,
) {
	if collector == nil {
		return
	}

	labels := BuildOperationLabels(operation, status)

	if contextualCollector, ok := collector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, OperationDurationMetric, duration, labels)
	} else {
		collector.RecordDuration(OperationDurationMetric, duration, labels)
	}

	IncrementCounter(ctx, collector, OperationCallsMetric, labels)

	switch status {
	case StatusRejected:
		IncrementCounter(ctx, collector, OperationRejectedMetric, labels)
	case StatusCanceled:
		IncrementCounter(ctx, collector, OperationCanceledMetric, labels)
	case StatusTimeout:
		IncrementCounter(ctx, collector, OperationTimeoutMetric, labels)
	case StatusConcurrencyConflict:
		IncrementCounter(ctx, collector, OperationConcurrencyConflictMetric, labels)
	}
}

// StartOperationSpan starts a tracing span for an operation.
// Returns the original context and nil if tracing is disabled.
func StartOperationSpan(
	ctx context.Context,
	tracingCollector TracingCollector,
	operation string,
) (context.Context, SpanContext) {
	if tracingCollector == nil {
		return ctx, nil
	}

	return tracingCollector.StartSpan(ctx, SpanNameOperation+operation, map[string]string{
		LogAttrOperation: operation,
	})
}

// FinishOperationSpan completes a tracing span with the operation outcome.
func FinishOperationSpan(
	tracingCollector TracingCollector,
	span SpanContext,
	status string,
	duration time.Duration,
	err error,
) {
	if tracingCollector == nil || span == nil {
		return
	}

	attrs := map[string]string{
		LogAttrStatus:     status,
		LogAttrDurationMS: fmt.Sprintf("%.2f", ToMilliseconds(duration)),
	}

	if err != nil {
		attrs[LogAttrError] = err.Error()
		attrs[LogAttrBusinessOutcome] = string(core.KindOf(err))
	}

	tracingCollector.FinishSpan(span, status, attrs)
}

// LogOperationStart logs the beginning of an operation.
func LogOperationStart(ctx context.Context, logger Logger, contextualLogger ContextualLogger, operation string) {
	if contextualLogger != nil {
		contextualLogger.DebugContext(ctx, LogMsgOperationStarted, LogAttrOperation, operation)
	} else if logger != nil {
		logger.Debug(LogMsgOperationStarted, LogAttrOperation, operation)
	}
}

// LogOperationOutcome logs how an operation ended. Rejections are expected and logged at info level.
func LogOperationOutcome(
	ctx context.Context,
	logger Logger,
	contextualLogger ContextualLogger,
	operation string,
	status string,
	duration time.Duration,
	err error,
) {
	args := []any{
		LogAttrOperation, operation,
		LogAttrStatus, status,
		LogAttrDurationMS, ToMilliseconds(duration),
	}

	switch status {
	case StatusSuccess, StatusIdempotent:
		logInfo(ctx, logger, contextualLogger, LogMsgOperationCompleted, args...)
	case StatusRejected:
		args = append(args, LogAttrBusinessOutcome, string(core.KindOf(err)))
		logInfo(ctx, logger, contextualLogger, LogMsgOperationRejected, args...)
	default:
		if err != nil {
			args = append(args, LogAttrError, err.Error())
		}
		logError(ctx, logger, contextualLogger, LogMsgOperationFailed, args...)
	}
}

// LogWarn logs a warning on whichever logger is configured.
func LogWarn(ctx context.Context, logger Logger, contextualLogger ContextualLogger, msg string, args ...any) {
	if contextualLogger != nil {
		contextualLogger.WarnContext(ctx, msg, args...)
	} else if logger != nil {
		logger.Warn(msg, args...)
	}
}

func logInfo(ctx context.Context, logger Logger, contextualLogger ContextualLogger, msg string, args ...any) {
	if contextualLogger != nil {
		contextualLogger.InfoContext(ctx, msg, args...)
	} else if logger != nil {
		logger.Info(msg, args...)
	}
}

func logError(ctx context.Context, logger Logger, contextualLogger ContextualLogger, msg string, args ...any) {
	if contextualLogger != nil {
		contextualLogger.ErrorContext(ctx, msg, args...)
	} else if logger != nil {
		logger.Error(msg, args...)
	}
}
