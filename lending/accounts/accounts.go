// Package accounts keeps the borrow limits and active loan lists of students.
package accounts

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	OperationAddLoan      = "add_loan"
	OperationReinsertLoan = "reinsert_loan"
	OperationRemoveLoan   = "remove_loan"
)

// Accounts is the StudentAccount component.
type Accounts struct {
	store      shell.DocumentStore
	collection string
	retry      shell.RetryPolicy
}

// Option defines a functional option for configuring Accounts.
type Option func(*Accounts) error

// WithCollection sets the collection holding the students.
func WithCollection(collection string) Option {
	return func(a *Accounts) error {
		if collection == "" {
			return shell.ErrEmptyCollection
		}

		a.collection = collection

		return nil
	}
}

// WithRetryPolicy sets the retry behavior of the loan list updates.
func WithRetryPolicy(policy shell.RetryPolicy) Option {
	return func(a *Accounts) error {
		a.retry = policy
		return nil
	}
}

// New creates Accounts on store.
func New(store shell.DocumentStore, options ...Option) (*Accounts, error) {
	if store == nil {
		return nil, shell.ErrNilDocumentStore
	}

	a := &Accounts{
		store:      store,
		collection: core.StudentsCollection,
	}

	for _, option := range options {
		if err := option(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Get returns the student or core.ErrStudentNotFound.
func (a *Accounts) Get(ctx context.Context, studentID core.StudentIDString) (core.Student, error) {
	student, _, err := shell.LoadDocument[core.Student](ctx, a.store, a.collection, studentID, core.ErrStudentNotFound)

	return student, err
}

// List returns every student in ascending id order.
func (a *Accounts) List(ctx context.Context) ([]core.Student, error) {
	return shell.FindDocuments[core.Student](ctx, a.store, a.collection, docstore.Select())
}

// CanBorrow reports whether the student's active list is below the borrow limit.
func (a *Accounts) CanBorrow(ctx context.Context, studentID core.StudentIDString) (bool, error) {
	student, err := a.Get(ctx, studentID)
	if err != nil {
		return false, err
	}

	return student.CanBorrow(), nil
}

// AddLoan appends loanID to the student's active list. The borrow limit is checked again
// inside the conditional write, so a concurrent borrow cannot push the list over the limit.
// Adding an id that is already listed is a no-op.
func (a *Accounts) AddLoan(ctx context.Context, studentID core.StudentIDString, loanID core.LoanIDString) (core.Student, error) {
	return a.update(ctx, studentID, shell.Mutation[core.Student]{
		Operation: OperationAddLoan,
		Decide: func(s core.Student) core.DecisionResult {
			return core.DecideAddLoan(s, loanID)
		},
		Apply: func(s core.Student) core.Student {
			return s.WithLoan(loanID)
		},
	})
}

// ReinsertLoan appends loanID without checking the borrow limit. Reconciliation uses it to
// re-link loans that were created but never listed, which already counted against the limit.
func (a *Accounts) ReinsertLoan(ctx context.Context, studentID core.StudentIDString, loanID core.LoanIDString) (core.Student, error) {
	return a.update(ctx, studentID, shell.Mutation[core.Student]{
		Operation: OperationReinsertLoan,
		Decide: func(s core.Student) core.DecisionResult {
			if s.HasLoan(loanID) {
				return core.IdempotentDecision()
			}

			return core.SuccessDecision()
		},
		Apply: func(s core.Student) core.Student {
			return s.WithLoan(loanID)
		},
	})
}

// RemoveLoan removes loanID from the student's active list. A missing id is a no-op.
func (a *Accounts) RemoveLoan(ctx context.Context, studentID core.StudentIDString, loanID core.LoanIDString) (core.Student, error) {
	return a.update(ctx, studentID, shell.Mutation[core.Student]{
		Operation: OperationRemoveLoan,
		Decide: func(s core.Student) core.DecisionResult {
			return core.DecideRemoveLoan(s, loanID)
		},
		Apply: func(s core.Student) core.Student {
			return s.WithoutLoan(loanID)
		},
	})
}

func (a *Accounts) update(ctx context.Context, studentID core.StudentIDString, mutation shell.Mutation[core.Student]) (core.Student, error) {
	result, err := shell.UpdateDocument(ctx, a.store, a.collection, studentID, core.ErrStudentNotFound, mutation, a.retry)

	return result.State, err
}
