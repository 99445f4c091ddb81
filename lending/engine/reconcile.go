package engine

import (
	"context"
	"errors"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	reconcileActionReinsert = "reinsert"
	reconcileActionDrop     = "drop"

	labelAction = "action"
)

// Reconcile repairs the student's loan list against the loans, which are the source of truth.
// Active loans of the student that are not listed are re-inserted without a borrow limit check,
// they already count. Loans younger than the reconcile grace are left to their borrow, which
// still lists them or voids them. Listed ids whose loan is returned, missing or someone else's
// are dropped.
func (e *Engine) Reconcile(ctx context.Context, studentID core.StudentIDString) (ReconcileReport, error) {
	if studentID == "" {
		return ReconcileReport{}, core.Validation("student_id required")
	}

	student, err := e.accounts.Get(ctx, studentID)
	if err != nil {
		return ReconcileReport{}, err
	}

	active, err := e.loans.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{
		StudentID:  studentID,
		Reinserted: []core.LoanIDString{},
		Dropped:    []core.LoanIDString{},
	}

	activeIDs := make(map[core.LoanIDString]struct{}, len(active))
	for _, loan := range active {
		activeIDs[loan.ID] = struct{}{}

		if student.HasLoan(loan.ID) || e.mayStillBeBorrowing(loan.ID) {
			continue
		}

		stale, staleErr := e.isStale(ctx, studentID, loan.ID)
		if staleErr != nil {
			return report, staleErr
		}

		if stale {
			continue
		}

		if _, err = e.accounts.ReinsertLoan(ctx, studentID, loan.ID); err != nil {
			return report, err
		}

		report.Reinserted = append(report.Reinserted, loan.ID)
		e.countReconciled(ctx, reconcileActionReinsert)
	}

	for _, loanID := range student.ActiveBorrowings {
		if _, ok := activeIDs[loanID]; ok {
			continue
		}

		stale, staleErr := e.isStale(ctx, studentID, loanID)
		if staleErr != nil {
			return report, staleErr
		}

		if !stale || slices.Contains(report.Dropped, loanID) {
			continue
		}

		if _, err = e.accounts.RemoveLoan(ctx, studentID, loanID); err != nil {
			return report, err
		}

		report.Dropped = append(report.Dropped, loanID)
		e.countReconciled(ctx, reconcileActionDrop)
	}

	if report.Changed() {
		shell.LogWarn(ctx, e.logger, e.contextualLogger, shell.LogMsgReconciled,
			shell.LogAttrStudentID, studentID,
			shell.LogAttrReinserted, len(report.Reinserted),
			shell.LogAttrDropped, len(report.Dropped))
	}

	return report, nil
}

// ReconcileAll reconciles every student and returns the reports in ascending student id order.
func (e *Engine) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	students, err := e.accounts.List(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]ReconcileReport, len(students))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.reconcileConcurrency)

	for i, student := range students {
		group.Go(func() error {
			report, reconcileErr := e.Reconcile(groupCtx, student.ID)
			reports[i] = report

			return reconcileErr
		})
	}

	if err = group.Wait(); err != nil {
		return nil, err
	}

	return reports, nil
}

// mayStillBeBorrowing reports whether the loan was created within the reconcile grace. Ids that
// carry no creation time count as old.
func (e *Engine) mayStillBeBorrowing(loanID core.LoanIDString) bool {
	if e.reconcileGrace == 0 {
		return false
	}

	createdAt, ok := loans.CreatedAt(loanID)
	if !ok {
		return false
	}

	return createdAt.After(e.now().Add(-e.reconcileGrace))
}

// isStale re-reads the loan: the queries of a sweep may predate a borrow, return or void in between.
func (e *Engine) isStale(ctx context.Context, studentID core.StudentIDString, loanID core.LoanIDString) (bool, error) {
	loan, err := e.loans.Get(ctx, loanID)
	if errors.Is(err, core.ErrLoanNotFound) {
		return true, nil
	}

	if err != nil {
		return false, err
	}

	return !loan.IsActive() || loan.StudentID != studentID, nil
}

func (e *Engine) countReconciled(ctx context.Context, action string) {
	shell.IncrementCounter(ctx, e.retry.Metrics, shell.ReconciledEntriesMetric, map[string]string{
		shell.LogAttrOperation: OperationReconcile,
		labelAction:            action,
	})
}
