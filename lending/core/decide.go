package core

// DecideTakeCopy decides whether one copy of the book can be handed out.
//
//	ERROR: "No copies available" if available_copies <= 0
func DecideTakeCopy(book Book) DecisionResult {
	if !book.HasCopyAvailable() {
		return ErrorDecision(ErrNoCopiesAvailable)
	}

	return SuccessDecision()
}

// DecideReturnCopy decides whether a returned copy is counted back.
//
//	IDEMPOTENCY: if available_copies already equals total_copies the count is clamped (no-op)
func DecideReturnCopy(book Book) DecisionResult {
	if book.AvailableCopies >= book.TotalCopies {
		return IdempotentDecision()
	}

	return SuccessDecision()
}

// DecideAddLoan decides whether loanID can be added to the student's active borrowings.
//
//	IDEMPOTENCY: if the loan is already listed, no change
//	ERROR: "Borrow limit reached" if the list is already at the borrow limit
func DecideAddLoan(student Student, loanID LoanIDString) DecisionResult {
	if student.HasLoan(loanID) {
		return IdempotentDecision()
	}

	if !student.CanBorrow() {
		return ErrorDecision(ErrBorrowLimitReached)
	}

	return SuccessDecision()
}

// DecideRemoveLoan decides whether loanID has to be removed from the student's list.
//
//	IDEMPOTENCY: if the loan is not listed, no change
func DecideRemoveLoan(student Student, loanID LoanIDString) DecisionResult {
	if !student.HasLoan(loanID) {
		return IdempotentDecision()
	}

	return SuccessDecision()
}

// DecideMarkReturned decides whether the loan can transition to returned.
//
//	ERROR: "Book already returned" if the loan is already returned
func DecideMarkReturned(loan Loan) DecisionResult {
	if loan.Returned {
		return ErrorDecision(ErrAlreadyReturned)
	}

	return SuccessDecision()
}
