package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

// Service is the set of lending operations. Engine implements it, and so do decorators
// such as the observable wrapper.
type Service interface {
	Borrow(ctx context.Context, studentID core.StudentIDString, titleFragment string) (BorrowResult, error)
	ReturnLoan(ctx context.Context, loanID core.LoanIDString) (ReturnResult, error)
	ListActiveLoans(ctx context.Context, studentID core.StudentIDString) (ActiveLoans, error)
	Status(ctx context.Context, studentID core.StudentIDString) (StudentStatus, error)
	Overdue(ctx context.Context, studentID core.StudentIDString) (OverdueReport, error)
	Search(ctx context.Context, subject, tag string) (SearchResult, error)
	Recommend(ctx context.Context, subject string) (Recommendation, error)
	Check(ctx context.Context, subject string) (AvailabilityCheck, error)
	AvailableBooks(ctx context.Context) (AvailableBooks, error)
	Login(ctx context.Context, studentID core.StudentIDString) (LoginResult, error)
	Reconcile(ctx context.Context, studentID core.StudentIDString) (ReconcileReport, error)
	ReconcileAll(ctx context.Context) ([]ReconcileReport, error)
}

// BorrowResult is the outcome of a successful borrow.
type BorrowResult struct {
	LoanID  core.LoanIDString
	BookID  core.BookIDString
	Title   string
	DueDate core.Date
	Message string
}

// ReturnResult is the outcome of a successful return.
type ReturnResult struct {
	LoanID core.LoanIDString
	BookID core.BookIDString
	Title  string

	// Clamped is true when the book already had all copies available and the
	// returned copy was not counted.
	Clamped bool

	Message string
}

// LoanItem is an active loan enriched with its book.
type LoanItem struct {
	// Index is the 1-based position in the student's list, counting only active loans.
	Index      int
	LoanID     core.LoanIDString
	BookID     core.BookIDString
	Title      string
	Author     string
	BorrowedOn core.Date
	DueDate    core.Date
}

// ActiveLoans lists a student's active loans in borrow order.
type ActiveLoans struct {
	StudentID core.StudentIDString
	Items     []LoanItem
	Summary   string
}

// Count returns the number of active loans.
func (a ActiveLoans) Count() int {
	return len(a.Items)
}

// StudentStatus is the profile of a student plus the active loans.
type StudentStatus struct {
	StudentID   core.StudentIDString
	Name        string
	Branch      string
	BorrowLimit int
	Loans       []LoanItem
	Summary     string
}

// BorrowedCount returns the number of active loans.
func (s StudentStatus) BorrowedCount() int {
	return len(s.Loans)
}

// OverdueItem is one active loan past its due date.
type OverdueItem struct {
	LoanID   core.LoanIDString
	BookID   core.BookIDString
	Title    string
	DueDate  core.Date
	DaysLate int
	Fine     int
}

// OverdueReport itemizes the fines of a student as of a day.
type OverdueReport struct {
	StudentID   core.StudentIDString
	StudentName string
	AsOf        core.Date
	Items       []OverdueItem
	TotalFine   int
}

// SearchResult holds the books of a subject, optionally narrowed to a tag.
type SearchResult struct {
	Subject string
	Tag     string
	Books   []core.Book
}

// Recommendation holds the best available books of a subject.
type Recommendation struct {
	Subject string
	Books   []core.Book
	Message string
}

// AvailabilityCheck tells whether any book of a subject can be borrowed.
type AvailabilityCheck struct {
	Subject   string
	Available bool
}

// AvailableBooks lists every book with at least one copy available.
type AvailableBooks struct {
	Books []core.Book
}

// LoginResult identifies a student.
type LoginResult struct {
	StudentID core.StudentIDString
	Name      string
	Branch    string
}

// ReconcileReport describes the repairs made to one student's loan list.
type ReconcileReport struct {
	StudentID core.StudentIDString

	// Reinserted holds active loans of the student that were missing from the list.
	Reinserted []core.LoanIDString

	// Dropped holds listed ids whose loan is returned, missing or belongs to someone else.
	Dropped []core.LoanIDString
}

// Changed reports whether the list was repaired.
func (r ReconcileReport) Changed() bool {
	return len(r.Reinserted) > 0 || len(r.Dropped) > 0
}

func borrowedMessage(title string) string {
	return title + " has been issued successfully."
}

func returnedMessage(title string) string {
	return title + " has been returned successfully."
}

func activeLoansSummary(items []LoanItem) string {
	if len(items) == 0 {
		return "You have no active borrowings."
	}

	entries := make([]string, 0, len(items))
	for _, item := range items {
		entries = append(entries, fmt.Sprintf("• %s\n  Due: %s\n  Transaction ID: %s", item.Title, item.DueDate, item.LoanID))
	}

	return "Your active borrowed books:\n\n" + strings.Join(entries, "\n\n")
}

func statusSummary(items []LoanItem) string {
	if len(items) == 0 {
		return "No active borrowings."
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s (Due: %s)", item.Title, item.DueDate))
	}

	return strings.Join(lines, "\n")
}

func recommendationMessage(subject string, books []core.Book) string {
	if len(books) == 0 {
		return fmt.Sprintf("No books found for %s.", subject)
	}

	lines := []string{fmt.Sprintf("Top recommended books for %s:\n", subject)}
	for i, book := range books {
		lines = append(lines, fmt.Sprintf("%d. %s by %s\n   Available copies: %d\n   Topics: %s\n",
			i+1, book.Title, book.Author, book.AvailableCopies, strings.Join(book.Tags, ", ")))
	}

	return strings.Join(lines, "\n")
}
