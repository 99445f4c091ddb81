package shell

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	errorTypeNone                    = "none"
	errorTypeConcurrencyConflict     = "concurrency_conflict"
	errorTypeContextCanceled         = "context_canceled"
	errorTypeContextDeadlineExceeded = "context_deadline_exceeded"
	errorTypeOther                   = "other"
)

var (
	// ErrNilMetricsCollector is returned by WithMetrics for a nil collector.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned by WithMetrics for an empty operation name.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is outside [0, 1].
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc is one attempt of a revision-conditioned read-modify-write.
type RetryableFunc func(ctx context.Context) error

// RetryMetrics describes how a retried call went.
type RetryMetrics struct {
	// Attempts is the number of calls made (1 for no retries).
	Attempts int

	// TotalDelay is the time spent sleeping between attempts.
	TotalDelay time.Duration

	// LastErrorType classifies the final error: "none", "concurrency_conflict",
	// "context_canceled", "context_deadline_exceeded" or "other".
	LastErrorType string

	// RetriesExhausted is true when every attempt lost a revision race.
	RetriesExhausted bool
}

// RetryOption configures RetryWithExponentialBackoff.
type RetryOption func(*backoffPolicy) error

type backoffPolicy struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	metrics      MetricsCollector
	operation    string
}

// delayBefore returns the sleep before the given zero-based attempt:
// baseDelay * 2^(attempt-1) plus up to jitterFactor of that on top.
func (p *backoffPolicy) delayBefore(attempt int) time.Duration {
	delay := p.baseDelay << (attempt - 1)
	jitter := time.Duration(rand.Float64() * float64(delay) * p.jitterFactor) //nolint:gosec // jitter needs no crypto rand

	return delay + jitter
}

func (p *backoffPolicy) recordDelay(ctx context.Context, attempt int, delay time.Duration) {
	if p.metrics == nil {
		return
	}

	labels := map[string]string{
		LogAttrOperation:   p.operation,
		LabelAttemptNumber: strconv.Itoa(attempt),
	}

	if collector, ok := p.metrics.(ContextualMetricsCollector); ok {
		collector.RecordDurationContext(ctx, RetryDelayMetric, delay, labels)
		return
	}

	p.metrics.RecordDuration(RetryDelayMetric, delay, labels)
}

func (p *backoffPolicy) recordRetry(ctx context.Context, nextAttempt int, err error) {
	if p.metrics == nil {
		return
	}

	IncrementCounter(ctx, p.metrics, RetriesMetric, BuildRetryLabels(p.operation, nextAttempt, retryErrorType(err)))
}

func (p *backoffPolicy) recordExhausted(ctx context.Context, err error) {
	if p.metrics == nil {
		return
	}

	IncrementCounter(ctx, p.metrics, MaxRetriesReachedMetric, map[string]string{
		LogAttrOperation:    p.operation,
		LabelFinalErrorType: retryErrorType(err),
	})
}

// RetryWithExponentialBackoff runs fn until it succeeds, fails with anything other than
// docstore.ErrConcurrencyConflict, the context ends, or the attempts are used up.
//
// With the defaults the sleeps are roughly 10, 20, 40 and 80 ms (+30% jitter) between five attempts.
// Timeouts and unavailable stores fail fast.
func RetryWithExponentialBackoff(ctx context.Context, fn RetryableFunc, options ...RetryOption) (RetryMetrics, error) {
	policy := &backoffPolicy{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(policy); err != nil {
			return RetryMetrics{}, err
		}
	}

	var result RetryMetrics
	var err error

	for attempt := range policy.maxAttempts {
		if attempt > 0 {
			delay := policy.delayBefore(attempt)
			policy.recordDelay(ctx, attempt, delay)

			if waitErr := sleep(ctx, delay); waitErr != nil {
				result.LastErrorType = retryErrorType(waitErr)
				return result, waitErr
			}

			result.TotalDelay += delay
		}

		result.Attempts++

		if err = fn(ctx); !errors.Is(err, docstore.ErrConcurrencyConflict) {
			result.LastErrorType = retryErrorType(err)
			return result, err
		}

		if attempt < policy.maxAttempts-1 {
			policy.recordRetry(ctx, attempt+1, err)
		}
	}

	result.LastErrorType = retryErrorType(err)
	result.RetriesExhausted = true
	policy.recordExhausted(ctx, err)

	return result, err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryErrorType(err error) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, docstore.ErrConcurrencyConflict):
		return errorTypeConcurrencyConflict
	case errors.Is(err, context.Canceled):
		return errorTypeContextCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeContextDeadlineExceeded
	default:
		return errorTypeOther
	}
}

// WithMaxAttempts sets the number of attempts, including the first.
func WithMaxAttempts(attempts int) RetryOption {
	return func(p *backoffPolicy) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		p.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the sleep before the second attempt. Each further sleep doubles it.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(p *backoffPolicy) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		p.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the random share (0.0 to 1.0) added on top of each sleep.
func WithJitterFactor(factor float64) RetryOption {
	return func(p *backoffPolicy) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		p.jitterFactor = factor

		return nil
	}
}

// WithMetrics records retries, delays and exhaustion labeled with operation.
func WithMetrics(collector MetricsCollector, operation string) RetryOption {
	return func(p *backoffPolicy) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		p.metrics = collector
		p.operation = operation

		return nil
	}
}
