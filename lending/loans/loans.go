// Package loans records the lifecycle of loans: created active, returned exactly once, never deleted.
package loans

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	OperationCreate       = "create_loan"
	OperationMarkReturned = "mark_returned"
	OperationVoid         = "void_loan"

	// LoanIDPrefix starts every generated loan id.
	LoanIDPrefix = "txn_"

	fieldStudentID = "student_id"
	fieldReturned  = "returned"
)

// ErrNilIDGenerator is returned when WithIDGenerator is called with nil.
var ErrNilIDGenerator = errors.New("id generator must not be nil")

// IDGenerator produces new loan ids.
type IDGenerator func() (core.LoanIDString, error)

// NewLoanID returns "txn_" followed by a UUIDv7. The ids are unique across processes
// and sort by creation time.
func NewLoanID() (core.LoanIDString, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return LoanIDPrefix + id.String(), nil
}

// CreatedAt reads the creation time embedded in an id made by NewLoanID. The second result is
// false for ids of any other shape, such as imported or hand-written ones.
func CreatedAt(loanID core.LoanIDString) (time.Time, bool) {
	raw, ok := strings.CutPrefix(loanID, LoanIDPrefix)
	if !ok {
		return time.Time{}, false
	}

	id, err := uuid.Parse(raw)
	if err != nil || id.Version() != 7 {
		return time.Time{}, false
	}

	// The first 48 bits of a UUIDv7 are the Unix time in milliseconds.
	var ms int64
	for _, b := range id[:6] {
		ms = ms<<8 | int64(b)
	}

	return time.UnixMilli(ms), true
}

// Loans is the LoanRecord component.
type Loans struct {
	store      shell.DocumentStore
	collection string
	retry      shell.RetryPolicy
	newID      IDGenerator
}

// Option defines a functional option for configuring Loans.
type Option func(*Loans) error

// WithCollection sets the collection holding the loans.
func WithCollection(collection string) Option {
	return func(l *Loans) error {
		if collection == "" {
			return shell.ErrEmptyCollection
		}

		l.collection = collection

		return nil
	}
}

// WithRetryPolicy sets the retry behavior of the loan writes.
func WithRetryPolicy(policy shell.RetryPolicy) Option {
	return func(l *Loans) error {
		l.retry = policy
		return nil
	}
}

// WithIDGenerator replaces NewLoanID.
func WithIDGenerator(newID IDGenerator) Option {
	return func(l *Loans) error {
		if newID == nil {
			return ErrNilIDGenerator
		}

		l.newID = newID

		return nil
	}
}

// New creates Loans on store.
func New(store shell.DocumentStore, options ...Option) (*Loans, error) {
	if store == nil {
		return nil, shell.ErrNilDocumentStore
	}

	l := &Loans{
		store:      store,
		collection: core.LoansCollection,
		newID:      NewLoanID,
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Create writes a new active loan borrowed on the given day and due LoanPeriodDays later.
// The write requires the id to be unused; on the unlikely collision a fresh id is drawn.
func (l *Loans) Create(
	ctx context.Context,
	bookID core.BookIDString,
	studentID core.StudentIDString,
	borrowedOn core.Date,
) (core.Loan, error) {
	var created core.Loan

	_, err := shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		id, err := l.newID()
		if err != nil {
			return err
		}

		loan := core.NewLoan(id, bookID, studentID, borrowedOn)

		body, err := docstore.Encode(loan)
		if err != nil {
			return err
		}

		if _, err = l.store.Put(ctx, l.collection, id, body, docstore.ExpectAbsent()); err != nil {
			return err
		}

		created = loan

		return nil
	}, l.retry.For(OperationCreate)...)
	if err != nil {
		return core.Loan{}, shell.TranslateStoreError(err)
	}

	return created, nil
}

// Get returns the loan or core.ErrLoanNotFound.
func (l *Loans) Get(ctx context.Context, loanID core.LoanIDString) (core.Loan, error) {
	loan, _, err := shell.LoadDocument[core.Loan](ctx, l.store, l.collection, loanID, core.ErrLoanNotFound)

	return loan, err
}

// MarkReturned performs the single active to returned transition. A second call fails with
// core.ErrAlreadyReturned, which makes it the exactly-once guard of a return.
func (l *Loans) MarkReturned(ctx context.Context, loanID core.LoanIDString, on core.Date) (core.Loan, error) {
	result, err := shell.UpdateDocument(ctx, l.store, l.collection, loanID, core.ErrLoanNotFound, shell.Mutation[core.Loan]{
		Operation: OperationMarkReturned,
		Decide:    core.DecideMarkReturned,
		Apply: func(loan core.Loan) core.Loan {
			return loan.MarkedReturned(on)
		},
	}, l.retry)

	return result.State, err
}

// Void closes a loan that never became effective, keeping it as an audit record with reason.
// Voiding a loan that is already closed is a no-op.
func (l *Loans) Void(ctx context.Context, loanID core.LoanIDString, on core.Date, reason string) (core.Loan, error) {
	result, err := shell.UpdateDocument(ctx, l.store, l.collection, loanID, core.ErrLoanNotFound, shell.Mutation[core.Loan]{
		Operation: OperationVoid,
		Decide: func(loan core.Loan) core.DecisionResult {
			if loan.Returned {
				return core.IdempotentDecision()
			}

			return core.SuccessDecision()
		},
		Apply: func(loan core.Loan) core.Loan {
			return loan.MarkedVoid(on, reason)
		},
	}, l.retry)

	return result.State, err
}

// ListActiveByStudent returns the student's loans that are not returned, in ascending id order.
func (l *Loans) ListActiveByStudent(ctx context.Context, studentID core.StudentIDString) ([]core.Loan, error) {
	return shell.FindDocuments[core.Loan](ctx, l.store, l.collection,
		docstore.Select().Eq(fieldStudentID, studentID).Eq(fieldReturned, false))
}
