package observable

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

// ErrNilService is returned when NewServiceWrapper is called without a service.
var ErrNilService = errors.New("service must not be nil")

// ServiceWrapper instruments every operation of the wrapped service with a span, duration and
// outcome metrics and a start/outcome log line. Business logic stays in the wrapped service.
type ServiceWrapper struct {
	service          engine.Service
	metricsCollector shell.MetricsCollector
	tracingCollector shell.TracingCollector
	contextualLogger shell.ContextualLogger
	logger           shell.Logger
}

// Option defines a functional option for configuring ServiceWrapper.
type Option func(*ServiceWrapper) error

// WithMetrics sets the metrics collector for the ServiceWrapper.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(w *ServiceWrapper) error {
		w.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the ServiceWrapper.
func WithTracing(collector shell.TracingCollector) Option {
	return func(w *ServiceWrapper) error {
		w.tracingCollector = collector
		return nil
	}
}

// WithContextualLogging sets the contextual logger for the ServiceWrapper.
func WithContextualLogging(logger shell.ContextualLogger) Option {
	return func(w *ServiceWrapper) error {
		w.contextualLogger = logger
		return nil
	}
}

// WithLogging sets the basic logger for the ServiceWrapper.
func WithLogging(logger shell.Logger) Option {
	return func(w *ServiceWrapper) error {
		w.logger = logger
		return nil
	}
}

// NewServiceWrapper creates an observable wrapper around service.
func NewServiceWrapper(service engine.Service, opts ...Option) (*ServiceWrapper, error) {
	if service == nil {
		return nil, ErrNilService
	}

	wrapper := &ServiceWrapper{service: service}

	for _, opt := range opts {
		if err := opt(wrapper); err != nil {
			return nil, err
		}
	}

	return wrapper, nil
}

// run executes fn between the start and the outcome instrumentation of operation.
func run[R any](ctx context.Context, w *ServiceWrapper, operation string, fn func(ctx context.Context) (R, error)) (R, error) {
	return runClassified(ctx, w, operation, fn, func(_ R, err error) string {
		return shell.StatusOf(err)
	})
}

// runClassified is run with a custom mapping from the outcome to the status label.
func runClassified[R any](
	ctx context.Context,
	w *ServiceWrapper,
	operation string,
	fn func(ctx context.Context) (R, error),
	statusOf func(result R, err error) string,
) (R, error) {
	start := time.Now()
	ctx, span := shell.StartOperationSpan(ctx, w.tracingCollector, operation)
	shell.LogOperationStart(ctx, w.logger, w.contextualLogger, operation)

	result, err := fn(ctx)

	duration := time.Since(start)
	status := statusOf(result, err)

	shell.RecordOperationMetrics(ctx, w.metricsCollector, operation, status, duration)
	shell.FinishOperationSpan(w.tracingCollector, span, status, duration, err)
	shell.LogOperationOutcome(ctx, w.logger, w.contextualLogger, operation, status, duration, err)

	return result, err
}

func (w *ServiceWrapper) Borrow(ctx context.Context, studentID core.StudentIDString, titleFragment string) (engine.BorrowResult, error) {
	return run(ctx, w, engine.OperationBorrow, func(ctx context.Context) (engine.BorrowResult, error) {
		return w.service.Borrow(ctx, studentID, titleFragment)
	})
}

// ReturnLoan reports a clamped return with the idempotent status, as no copy was counted.
func (w *ServiceWrapper) ReturnLoan(ctx context.Context, loanID core.LoanIDString) (engine.ReturnResult, error) {
	return runClassified(ctx, w, engine.OperationReturn,
		func(ctx context.Context) (engine.ReturnResult, error) {
			return w.service.ReturnLoan(ctx, loanID)
		},
		func(result engine.ReturnResult, err error) string {
			if err == nil && result.Clamped {
				return shell.StatusIdempotent
			}

			return shell.StatusOf(err)
		})
}

func (w *ServiceWrapper) ListActiveLoans(ctx context.Context, studentID core.StudentIDString) (engine.ActiveLoans, error) {
	return run(ctx, w, engine.OperationListActiveLoans, func(ctx context.Context) (engine.ActiveLoans, error) {
		return w.service.ListActiveLoans(ctx, studentID)
	})
}

func (w *ServiceWrapper) Status(ctx context.Context, studentID core.StudentIDString) (engine.StudentStatus, error) {
	return run(ctx, w, engine.OperationStatus, func(ctx context.Context) (engine.StudentStatus, error) {
		return w.service.Status(ctx, studentID)
	})
}

func (w *ServiceWrapper) Overdue(ctx context.Context, studentID core.StudentIDString) (engine.OverdueReport, error) {
	return run(ctx, w, engine.OperationOverdue, func(ctx context.Context) (engine.OverdueReport, error) {
		return w.service.Overdue(ctx, studentID)
	})
}

func (w *ServiceWrapper) Search(ctx context.Context, subject, tag string) (engine.SearchResult, error) {
	return run(ctx, w, engine.OperationSearch, func(ctx context.Context) (engine.SearchResult, error) {
		return w.service.Search(ctx, subject, tag)
	})
}

func (w *ServiceWrapper) Recommend(ctx context.Context, subject string) (engine.Recommendation, error) {
	return run(ctx, w, engine.OperationRecommend, func(ctx context.Context) (engine.Recommendation, error) {
		return w.service.Recommend(ctx, subject)
	})
}

func (w *ServiceWrapper) Check(ctx context.Context, subject string) (engine.AvailabilityCheck, error) {
	return run(ctx, w, engine.OperationCheck, func(ctx context.Context) (engine.AvailabilityCheck, error) {
		return w.service.Check(ctx, subject)
	})
}

func (w *ServiceWrapper) AvailableBooks(ctx context.Context) (engine.AvailableBooks, error) {
	return run(ctx, w, engine.OperationAvailableBooks, w.service.AvailableBooks)
}

func (w *ServiceWrapper) Login(ctx context.Context, studentID core.StudentIDString) (engine.LoginResult, error) {
	return run(ctx, w, engine.OperationLogin, func(ctx context.Context) (engine.LoginResult, error) {
		return w.service.Login(ctx, studentID)
	})
}

func (w *ServiceWrapper) Reconcile(ctx context.Context, studentID core.StudentIDString) (engine.ReconcileReport, error) {
	return run(ctx, w, engine.OperationReconcile, func(ctx context.Context) (engine.ReconcileReport, error) {
		return w.service.Reconcile(ctx, studentID)
	})
}

func (w *ServiceWrapper) ReconcileAll(ctx context.Context) ([]engine.ReconcileReport, error) {
	return run(ctx, w, engine.OperationReconcileAll, w.service.ReconcileAll)
}

var _ engine.Service = (*ServiceWrapper)(nil)
