package core

// Loan is the permanent record of one book lent to one student.
// It moves from active to returned exactly once and is never deleted.
type Loan struct {
	ID         LoanIDString    `json:"-"`
	BookID     BookIDString    `json:"book_id"`
	StudentID  StudentIDString `json:"student_id"`
	BorrowedOn Date            `json:"borrowed_on"`
	DueDate    Date            `json:"due_date"`
	Returned   bool            `json:"returned"`
	ReturnedOn *Date           `json:"returned_on,omitempty"`
	VoidReason string          `json:"void_reason,omitempty"`
}

// NewLoan builds an active loan borrowed on the given day.
func NewLoan(id LoanIDString, bookID BookIDString, studentID StudentIDString, borrowedOn Date) Loan {
	return Loan{
		ID:         id,
		BookID:     bookID,
		StudentID:  studentID,
		BorrowedOn: borrowedOn,
		DueDate:    borrowedOn.AddDays(LoanPeriodDays),
	}
}

// IsActive reports whether the book has not come back yet.
func (l Loan) IsActive() bool {
	return !l.Returned
}

// IsVoided reports whether the loan was closed by a compensation instead of a return.
func (l Loan) IsVoided() bool {
	return l.VoidReason != ""
}

// OverdueOn returns the days late and the fine as of today. Both are zero unless the
// loan is active and its due date lies strictly before today.
func (l Loan) OverdueOn(today Date) (daysLate int, fine int) {
	if !l.IsActive() || !l.DueDate.Before(today) {
		return 0, 0
	}

	daysLate = DaysBetween(l.DueDate, today)

	return daysLate, daysLate * FinePerDay
}

// MarkedReturned returns a copy of the loan closed on the given day.
func (l Loan) MarkedReturned(on Date) Loan {
	l.Returned = true
	l.ReturnedOn = &on

	return l
}

// MarkedVoid returns a copy of the loan closed by a compensation.
func (l Loan) MarkedVoid(on Date, reason string) Loan {
	l = l.MarkedReturned(on)
	l.VoidReason = reason

	return l
}

// WithID returns a copy carrying the document key.
func (l Loan) WithID(id LoanIDString) Loan {
	l.ID = id

	return l
}
