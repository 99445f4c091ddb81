package engine

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	compensationStepVoidLoan   = "void_loan"
	compensationStepPutBack    = "put_back_copy"
	compensationStepRemoveLoan = "remove_loan_id"

	logAttrStep = "step"
)

// Borrow lends the first book whose title contains titleFragment to the student.
//
// The prechecks fail with core.ErrBookNotFound, core.ErrNoCopiesAvailable,
// core.ErrStudentNotFound or core.ErrBorrowLimitReached without touching any aggregate.
// The same copy and limit rules are enforced again by the conditional writes, so a
// concurrent borrow that wins the race makes this one fail with the same errors.
func (e *Engine) Borrow(ctx context.Context, studentID core.StudentIDString, titleFragment string) (BorrowResult, error) {
	if titleFragment == "" || studentID == "" {
		return BorrowResult{}, core.Validation("title and student_id required")
	}

	book, err := e.inventory.FindByTitleFragment(ctx, titleFragment)
	if err != nil {
		return BorrowResult{}, err
	}

	if !book.HasCopyAvailable() {
		return BorrowResult{}, core.ErrNoCopiesAvailable
	}

	student, err := e.accounts.Get(ctx, studentID)
	if err != nil {
		return BorrowResult{}, err
	}

	if !student.CanBorrow() {
		return BorrowResult{}, core.ErrBorrowLimitReached
	}

	loan, err := e.loans.Create(ctx, book.ID, studentID, e.today())
	if err != nil {
		return BorrowResult{}, err
	}

	if _, err = e.inventory.DecrementAvailable(ctx, book.ID); err != nil {
		e.compensateBorrow(ctx, loan, false, err)
		return BorrowResult{}, err
	}

	if _, err = e.accounts.AddLoan(ctx, studentID, loan.ID); err != nil {
		e.compensateBorrow(ctx, loan, true, err)
		return BorrowResult{}, err
	}

	return BorrowResult{
		LoanID:  loan.ID,
		BookID:  book.ID,
		Title:   book.Title,
		DueDate: loan.DueDate,
		Message: borrowedMessage(book.Title),
	}, nil
}

// compensateBorrow undoes the steps of a failed borrow in reverse order. It runs detached from
// the caller's cancellation, so a canceled request still gets cleaned up. Failed steps are logged
// and left to Reconcile.
func (e *Engine) compensateBorrow(ctx context.Context, loan core.Loan, copyTaken bool, cause error) {
	ctx = context.WithoutCancel(ctx)

	shell.LogWarn(ctx, e.logger, e.contextualLogger, shell.LogMsgCompensation,
		shell.LogAttrLoanID, loan.ID,
		shell.LogAttrBookID, loan.BookID,
		shell.LogAttrStudentID, loan.StudentID,
		shell.LogAttrReason, core.MessageOf(cause))

	if _, err := e.loans.Void(ctx, loan.ID, e.today(), core.MessageOf(cause)); err != nil {
		e.logCompensationFailure(ctx, loan, compensationStepVoidLoan, err)
	}

	if copyTaken {
		if _, _, err := e.inventory.IncrementAvailable(ctx, loan.BookID); err != nil {
			e.logCompensationFailure(ctx, loan, compensationStepPutBack, err)
		}
	}

	// A concurrent Reconcile may already have listed the loan.
	if _, err := e.accounts.RemoveLoan(ctx, loan.StudentID, loan.ID); err != nil {
		e.logCompensationFailure(ctx, loan, compensationStepRemoveLoan, err)
	}
}

func (e *Engine) logCompensationFailure(ctx context.Context, loan core.Loan, step string, err error) {
	shell.LogWarn(ctx, e.logger, e.contextualLogger, shell.LogMsgCompensationFailed,
		shell.LogAttrLoanID, loan.ID,
		logAttrStep, step,
		shell.LogAttrError, err.Error())
}

// ReturnLoan closes the loan, puts the copy back and removes the loan id from the student.
// Marking the loan returned comes first and is the exactly-once guard: a second return fails
// with core.ErrAlreadyReturned before anything else is touched. The book of an active loan is
// resolved up front, so a loan of a missing book fails with core.ErrBookNotFound and stays active.
func (e *Engine) ReturnLoan(ctx context.Context, loanID core.LoanIDString) (ReturnResult, error) {
	if loanID == "" {
		return ReturnResult{}, core.Validation("transaction_id required")
	}

	loan, err := e.loans.Get(ctx, loanID)
	if err != nil {
		return ReturnResult{}, err
	}

	if loan.IsActive() {
		if _, err = e.inventory.Get(ctx, loan.BookID); err != nil {
			return ReturnResult{}, err
		}
	}

	loan, err = e.loans.MarkReturned(ctx, loanID, e.today())
	if err != nil {
		return ReturnResult{}, err
	}

	book, clamped, err := e.inventory.IncrementAvailable(ctx, loan.BookID)
	if err != nil {
		return ReturnResult{}, err
	}

	if _, err = e.accounts.RemoveLoan(ctx, loan.StudentID, loan.ID); err != nil {
		return ReturnResult{}, err
	}

	return ReturnResult{
		LoanID:  loan.ID,
		BookID:  book.ID,
		Title:   book.Title,
		Clamped: clamped,
		Message: returnedMessage(book.Title),
	}, nil
}
