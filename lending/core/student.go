package core

import (
	"slices"
)

// Student is a library member. ActiveBorrowings holds loan ids in borrow order; it is
// advisory, the loans themselves say whether they are still active.
type Student struct {
	ID               StudentIDString `json:"-"`
	Name             string          `json:"name"`
	Branch           string          `json:"branch"`
	BorrowLimit      int             `json:"borrow_limit"`
	ActiveBorrowings []LoanIDString  `json:"active_borrowings"`
}

// CanBorrow reports whether the student is below the borrow limit.
func (s Student) CanBorrow() bool {
	return len(s.ActiveBorrowings) < s.BorrowLimit
}

// HasLoan reports whether loanID is listed.
func (s Student) HasLoan(loanID LoanIDString) bool {
	return slices.Contains(s.ActiveBorrowings, loanID)
}

// WithLoan returns a copy of the student with loanID appended.
func (s Student) WithLoan(loanID LoanIDString) Student {
	borrowings := make([]LoanIDString, 0, len(s.ActiveBorrowings)+1)
	borrowings = append(borrowings, s.ActiveBorrowings...)
	s.ActiveBorrowings = append(borrowings, loanID)

	return s
}

// WithoutLoan returns a copy of the student with every occurrence of loanID removed.
func (s Student) WithoutLoan(loanID LoanIDString) Student {
	borrowings := make([]LoanIDString, 0, len(s.ActiveBorrowings))
	for _, id := range s.ActiveBorrowings {
		if id != loanID {
			borrowings = append(borrowings, id)
		}
	}

	s.ActiveBorrowings = borrowings

	return s
}

// WithID returns a copy carrying the document key.
func (s Student) WithID(id StudentIDString) Student {
	s.ID = id

	return s
}
