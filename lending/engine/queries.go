package engine

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

const enrichConcurrency = 8

// ListActiveLoans returns the student's loans that are still active, enriched with title and
// due date, in the order of the student's list. Listed ids whose loan is returned or missing
// are skipped. The per-student views read from the primary, so they show the student's own
// borrow or return right away. Only the catalog queries accept replica lag.
func (e *Engine) ListActiveLoans(ctx context.Context, studentID core.StudentIDString) (ActiveLoans, error) {
	if studentID == "" {
		return ActiveLoans{}, core.Validation("student_id required")
	}

	ctx = docstore.WithReadPrimary(ctx)

	student, err := e.accounts.Get(ctx, studentID)
	if err != nil {
		return ActiveLoans{}, err
	}

	items, err := e.activeLoanItems(ctx, student)
	if err != nil {
		return ActiveLoans{}, err
	}

	return ActiveLoans{
		StudentID: studentID,
		Items:     items,
		Summary:   activeLoansSummary(items),
	}, nil
}

// Status returns the student's profile and active loans.
func (e *Engine) Status(ctx context.Context, studentID core.StudentIDString) (StudentStatus, error) {
	if studentID == "" {
		return StudentStatus{}, core.Validation("student_id required")
	}

	ctx = docstore.WithReadPrimary(ctx)

	student, err := e.accounts.Get(ctx, studentID)
	if err != nil {
		return StudentStatus{}, err
	}

	items, err := e.activeLoanItems(ctx, student)
	if err != nil {
		return StudentStatus{}, err
	}

	return StudentStatus{
		StudentID:   student.ID,
		Name:        student.Name,
		Branch:      student.Branch,
		BorrowLimit: student.BorrowLimit,
		Loans:       items,
		Summary:     statusSummary(items),
	}, nil
}

// Overdue itemizes the active loans due strictly before today, each fined
// core.FinePerDay per day late.
func (e *Engine) Overdue(ctx context.Context, studentID core.StudentIDString) (OverdueReport, error) {
	if studentID == "" {
		return OverdueReport{}, core.Validation("student_id required")
	}

	ctx = docstore.WithReadPrimary(ctx)
	today := e.today()

	student, err := e.accounts.Get(ctx, studentID)
	if err != nil {
		return OverdueReport{}, err
	}

	items, err := e.activeLoanItems(ctx, student)
	if err != nil {
		return OverdueReport{}, err
	}

	report := OverdueReport{
		StudentID:   student.ID,
		StudentName: student.Name,
		AsOf:        today,
		Items:       []OverdueItem{},
	}

	for _, item := range items {
		loan := core.Loan{DueDate: item.DueDate}

		daysLate, fine := loan.OverdueOn(today)
		if daysLate == 0 {
			continue
		}

		report.Items = append(report.Items, OverdueItem{
			LoanID:   item.LoanID,
			BookID:   item.BookID,
			Title:    item.Title,
			DueDate:  item.DueDate,
			DaysLate: daysLate,
			Fine:     fine,
		})
		report.TotalFine += fine
	}

	return report, nil
}

// Search returns the books whose subject equals subject exactly. A non-empty tag keeps only
// books carrying that tag, compared case-insensitively.
func (e *Engine) Search(ctx context.Context, subject, tag string) (SearchResult, error) {
	if subject == "" {
		return SearchResult{Books: []core.Book{}}, core.Validation("subject required")
	}

	books, err := e.inventory.FindBySubject(docstore.WithReadReplica(ctx), subject)
	if err != nil {
		return SearchResult{}, err
	}

	return SearchResult{
		Subject: subject,
		Tag:     tag,
		Books:   core.FilterByTag(books, tag),
	}, nil
}

// Recommend returns up to core.RecommendationLimit books of the subject, most available
// copies first, ties by ascending book id. No matching book is not an error.
func (e *Engine) Recommend(ctx context.Context, subject string) (Recommendation, error) {
	if subject == "" {
		return Recommendation{}, core.Validation("Subject not provided")
	}

	books, err := e.inventory.FindBySubject(docstore.WithReadReplica(ctx), subject)
	if err != nil {
		return Recommendation{}, err
	}

	ranked := core.RankForRecommendation(books)

	return Recommendation{
		Subject: subject,
		Books:   ranked,
		Message: recommendationMessage(subject, ranked),
	}, nil
}

// Check reports whether any book of the subject has a copy available.
func (e *Engine) Check(ctx context.Context, subject string) (AvailabilityCheck, error) {
	if subject == "" {
		return AvailabilityCheck{}, core.Validation("Subject not provided")
	}

	books, err := e.inventory.FindBySubject(docstore.WithReadReplica(ctx), subject)
	if err != nil {
		return AvailabilityCheck{}, err
	}

	return AvailabilityCheck{Subject: subject, Available: core.AnyAvailable(books)}, nil
}

// AvailableBooks lists the books with at least one copy available, in ascending id order.
func (e *Engine) AvailableBooks(ctx context.Context) (AvailableBooks, error) {
	books, err := e.inventory.FindAvailable(docstore.WithReadReplica(ctx))
	if err != nil {
		return AvailableBooks{}, err
	}

	return AvailableBooks{Books: books}, nil
}

// Login looks the student up. An unknown id fails with core.ErrUnknownStudent.
func (e *Engine) Login(ctx context.Context, studentID core.StudentIDString) (LoginResult, error) {
	if studentID == "" {
		return LoginResult{}, core.Validation("student_id required")
	}

	student, err := e.accounts.Get(docstore.WithReadReplica(ctx), studentID)
	if errors.Is(err, core.ErrStudentNotFound) {
		return LoginResult{}, core.ErrUnknownStudent
	}

	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{StudentID: student.ID, Name: student.Name, Branch: student.Branch}, nil
}

// activeLoanItems loads the listed loans and their books concurrently and keeps the active
// ones in list order. The list is advisory: every loan's own state decides.
func (e *Engine) activeLoanItems(ctx context.Context, student core.Student) ([]LoanItem, error) {
	slots := make([]*LoanItem, len(student.ActiveBorrowings))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(enrichConcurrency)

	for i, loanID := range student.ActiveBorrowings {
		group.Go(func() error {
			item, ok, err := e.loanItem(groupCtx, student.ID, loanID)
			if err != nil || !ok {
				return err
			}

			slots[i] = &item

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	items := make([]LoanItem, 0, len(slots))
	for _, slot := range slots {
		if slot == nil {
			continue
		}

		slot.Index = len(items) + 1
		items = append(items, *slot)
	}

	return items, nil
}

// loanItem returns false for stale list entries. A book that no longer exists leaves
// title and author empty.
func (e *Engine) loanItem(ctx context.Context, studentID core.StudentIDString, loanID core.LoanIDString) (LoanItem, bool, error) {
	loan, err := e.loans.Get(ctx, loanID)
	if errors.Is(err, core.ErrLoanNotFound) {
		return LoanItem{}, false, nil
	}

	if err != nil {
		return LoanItem{}, false, err
	}

	if !loan.IsActive() || loan.StudentID != studentID {
		return LoanItem{}, false, nil
	}

	item := LoanItem{
		LoanID:     loan.ID,
		BookID:     loan.BookID,
		BorrowedOn: loan.BorrowedOn,
		DueDate:    loan.DueDate,
	}

	book, err := e.inventory.Get(ctx, loan.BookID)
	if err != nil && !errors.Is(err, core.ErrBookNotFound) {
		return LoanItem{}, false, err
	}

	item.Title = book.Title
	item.Author = book.Author

	return item, true, nil
}
