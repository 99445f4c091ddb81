package engine

import (
	"errors"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending/accounts"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/inventory"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	OperationBorrow          = "borrow"
	OperationReturn          = "return"
	OperationListActiveLoans = "list_active_loans"
	OperationStatus          = "status"
	OperationOverdue         = "overdue"
	OperationSearch          = "search"
	OperationRecommend       = "recommend"
	OperationCheck           = "check"
	OperationAvailableBooks  = "available_books"
	OperationLogin           = "login"
	OperationReconcile       = "reconcile"
	OperationReconcileAll    = "reconcile_all"

	defaultReconcileConcurrency = 4
	defaultReconcileGrace       = time.Minute
)

var (
	// ErrNilClock is returned when WithClock is called with nil.
	ErrNilClock = errors.New("clock must not be nil")

	// ErrInvalidReconcileConcurrency is returned when the reconcile concurrency is not positive.
	ErrInvalidReconcileConcurrency = errors.New("reconcile concurrency must be positive")

	// ErrNegativeReconcileGrace is returned when the reconcile grace period is negative.
	ErrNegativeReconcileGrace = errors.New("reconcile grace must not be negative")
)

// Engine is the LendingEngine. It holds no mutable state besides its components and is safe
// for concurrent use.
type Engine struct {
	inventory *inventory.Inventory
	accounts  *accounts.Accounts
	loans     *loans.Loans

	collections          core.Collections
	now                  func() time.Time
	retry                shell.RetryPolicy
	newLoanID            loans.IDGenerator
	reconcileConcurrency int
	reconcileGrace       time.Duration
	logger               shell.Logger
	contextualLogger     shell.ContextualLogger
}

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithClock sets the source of "today". Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return ErrNilClock
		}

		e.now = now

		return nil
	}
}

// WithRetryOptions sets the retry behavior of every conditional write.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(e *Engine) error {
		e.retry.Options = opts
		return nil
	}
}

// WithMetrics sets the collector for retry, clamp and reconciliation metrics.
func WithMetrics(collector shell.MetricsCollector) Option {
	return func(e *Engine) error {
		if collector == nil {
			return shell.ErrNilMetricsCollector
		}

		e.retry.Metrics = collector

		return nil
	}
}

// WithLogger sets the logger for compensation and reconciliation events.
func WithLogger(logger shell.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for compensation and reconciliation events.
func WithContextualLogger(logger shell.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithCollections sets the collection names of books, loans and students.
func WithCollections(collections core.Collections) Option {
	return func(e *Engine) error {
		if collections.Books == "" || collections.Loans == "" || collections.Students == "" {
			return shell.ErrEmptyCollection
		}

		e.collections = collections

		return nil
	}
}

// WithLoanIDGenerator replaces loans.NewLoanID.
func WithLoanIDGenerator(newID loans.IDGenerator) Option {
	return func(e *Engine) error {
		if newID == nil {
			return loans.ErrNilIDGenerator
		}

		e.newLoanID = newID

		return nil
	}
}

// WithReconcileConcurrency limits how many students ReconcileAll repairs in parallel.
func WithReconcileConcurrency(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return ErrInvalidReconcileConcurrency
		}

		e.reconcileConcurrency = n

		return nil
	}
}

// WithReconcileGrace sets how old an unlisted loan must be before Reconcile lists it. Younger
// loans may belong to a borrow that has not reached its student write yet. Zero lists every
// unlisted loan.
func WithReconcileGrace(grace time.Duration) Option {
	return func(e *Engine) error {
		if grace < 0 {
			return ErrNegativeReconcileGrace
		}

		e.reconcileGrace = grace

		return nil
	}
}

// New creates an Engine on store.
func New(store shell.DocumentStore, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, shell.ErrNilDocumentStore
	}

	e := &Engine{
		collections:          core.DefaultCollections(),
		now:                  time.Now,
		newLoanID:            loans.NewLoanID,
		reconcileConcurrency: defaultReconcileConcurrency,
		reconcileGrace:       defaultReconcileGrace,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	var err error

	e.inventory, err = inventory.New(store,
		inventory.WithCollection(e.collections.Books),
		inventory.WithRetryPolicy(e.retry),
		inventory.WithLogger(e.logger),
		inventory.WithContextualLogger(e.contextualLogger),
	)
	if err != nil {
		return nil, err
	}

	e.accounts, err = accounts.New(store,
		accounts.WithCollection(e.collections.Students),
		accounts.WithRetryPolicy(e.retry),
	)
	if err != nil {
		return nil, err
	}

	e.loans, err = loans.New(store,
		loans.WithCollection(e.collections.Loans),
		loans.WithRetryPolicy(e.retry),
		loans.WithIDGenerator(e.newLoanID),
	)
	if err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) today() core.Date {
	return core.DateOf(e.now())
}

var _ Service = (*Engine)(nil)
