package httpapi

import (
	"fmt"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/intent"
)

const msgBackendRunning = "Library backend running"

type studentRequest struct {
	StudentID string `json:"student_id"`
}

type subjectRequest struct {
	Subject string `json:"subject"`
}

type searchRequest struct {
	Subject string `json:"subject"`
	Tag     string `json:"tag"`
}

type lendRequest struct {
	Title     string `json:"title"`
	StudentID string `json:"student_id"`
}

type returnRequest struct {
	TransactionID string `json:"transaction_id"`
}

type smartRouteRequest struct {
	Text      string `json:"text"`
	StudentID string `json:"student_id"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	envelope
	Error core.Kind `json:"error"`
}

type homeResponse struct {
	envelope
	Status string `json:"status"`
}

type bookBody struct {
	BookID          string   `json:"book_id"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Subject         string   `json:"subject"`
	Tags            []string `json:"tags"`
	AvailableCopies int      `json:"available_copies"`
	TotalCopies     int      `json:"total_copies"`
}

type booksResponse struct {
	envelope
	Count int        `json:"count"`
	Books []bookBody `json:"books"`
}

type loginResponse struct {
	envelope
	Status    string `json:"status"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Branch    string `json:"branch"`
}

type checkResponse struct {
	envelope
	Subject   string `json:"subject"`
	Available bool   `json:"available"`
}

type recommendResponse struct {
	envelope
	Subject string     `json:"subject"`
	Books   []bookBody `json:"books"`
}

type lendResponse struct {
	envelope
	Title         string    `json:"title"`
	BookID        string    `json:"book_id"`
	TransactionID string    `json:"transaction_id"`
	DueDate       core.Date `json:"due_date"`
}

type borrowItem struct {
	Index         int       `json:"index"`
	TransactionID string    `json:"transaction_id"`
	Title         string    `json:"title"`
	DueDate       core.Date `json:"due_date"`
}

type activeBorrowsResponse struct {
	envelope
	Count   int          `json:"count"`
	Summary string       `json:"summary"`
	Items   []borrowItem `json:"items"`
}

type returnResponse struct {
	envelope
	TransactionID string `json:"transaction_id"`
	BookID        string `json:"book_id"`
	Title         string `json:"title"`
	Clamped       bool   `json:"clamped"`
}

type borrowedDetail struct {
	TransactionID string    `json:"transaction_id"`
	BookID        string    `json:"book_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	BorrowedOn    core.Date `json:"borrowed_on"`
	DueDate       core.Date `json:"due_date"`
}

type statusResponse struct {
	envelope
	StudentID         string           `json:"student_id"`
	Name              string           `json:"name"`
	Branch            string           `json:"branch"`
	BorrowLimit       int              `json:"borrow_limit"`
	BorrowedCount     int              `json:"borrowed_count"`
	BorrowedSummary   string           `json:"borrowed_summary"`
	CurrentlyBorrowed []borrowedDetail `json:"currently_borrowed"`
}

type overdueBook struct {
	TransactionID string    `json:"transaction_id"`
	BookID        string    `json:"book_id"`
	Title         string    `json:"title"`
	DueDate       core.Date `json:"due_date"`
	DaysLate      int       `json:"days_late"`
	Fine          int       `json:"fine"`
}

type overdueResponse struct {
	envelope
	StudentID    string        `json:"student_id"`
	StudentName  string        `json:"student_name"`
	AsOf         core.Date     `json:"as_of"`
	OverdueBooks []overdueBook `json:"overdue_books"`
	TotalFine    int           `json:"total_fine"`
}

func ok(message string) envelope {
	return envelope{Success: true, Message: message}
}

func toBookBodies(books []core.Book) []bookBody {
	bodies := make([]bookBody, 0, len(books))
	for _, b := range books {
		tags := b.Tags
		if tags == nil {
			tags = []string{}
		}

		bodies = append(bodies, bookBody{
			BookID:          b.ID,
			Title:           b.Title,
			Author:          b.Author,
			Subject:         b.Subject,
			Tags:            tags,
			AvailableCopies: b.AvailableCopies,
			TotalCopies:     b.TotalCopies,
		})
	}

	return bodies
}

func fromAvailableBooks(result engine.AvailableBooks) booksResponse {
	return booksResponse{
		envelope: ok(fmt.Sprintf("%d books available", len(result.Books))),
		Count:    len(result.Books),
		Books:    toBookBodies(result.Books),
	}
}

func fromSearch(result engine.SearchResult) booksResponse {
	return booksResponse{
		envelope: ok(fmt.Sprintf("%d books found", len(result.Books))),
		Count:    len(result.Books),
		Books:    toBookBodies(result.Books),
	}
}

func fromLogin(result engine.LoginResult) loginResponse {
	return loginResponse{
		envelope:  ok("Welcome, " + result.Name),
		Status:    "authenticated",
		StudentID: result.StudentID,
		Name:      result.Name,
		Branch:    result.Branch,
	}
}

func fromCheck(result engine.AvailabilityCheck) checkResponse {
	message := fmt.Sprintf("No %s books are available right now", result.Subject)
	if result.Available {
		message = fmt.Sprintf("%s books are available", result.Subject)
	}

	return checkResponse{
		envelope:  ok(message),
		Subject:   result.Subject,
		Available: result.Available,
	}
}

func fromRecommendation(result engine.Recommendation) recommendResponse {
	return recommendResponse{
		envelope: ok(result.Message),
		Subject:  result.Subject,
		Books:    toBookBodies(result.Books),
	}
}

func fromBorrow(result engine.BorrowResult) lendResponse {
	return lendResponse{
		envelope:      ok(result.Message),
		Title:         result.Title,
		BookID:        result.BookID,
		TransactionID: result.LoanID,
		DueDate:       result.DueDate,
	}
}

func fromActiveLoans(result engine.ActiveLoans) activeBorrowsResponse {
	items := make([]borrowItem, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, borrowItem{
			Index:         item.Index,
			TransactionID: item.LoanID,
			Title:         item.Title,
			DueDate:       item.DueDate,
		})
	}

	return activeBorrowsResponse{
		envelope: ok(result.Summary),
		Count:    result.Count(),
		Summary:  result.Summary,
		Items:    items,
	}
}

func fromReturn(result engine.ReturnResult) returnResponse {
	return returnResponse{
		envelope:      ok(result.Message),
		TransactionID: result.LoanID,
		BookID:        result.BookID,
		Title:         result.Title,
		Clamped:       result.Clamped,
	}
}

func fromStatus(result engine.StudentStatus) statusResponse {
	details := make([]borrowedDetail, 0, len(result.Loans))
	for _, item := range result.Loans {
		details = append(details, borrowedDetail{
			TransactionID: item.LoanID,
			BookID:        item.BookID,
			Title:         item.Title,
			Author:        item.Author,
			BorrowedOn:    item.BorrowedOn,
			DueDate:       item.DueDate,
		})
	}

	return statusResponse{
		envelope:          ok(result.Summary),
		StudentID:         result.StudentID,
		Name:              result.Name,
		Branch:            result.Branch,
		BorrowLimit:       result.BorrowLimit,
		BorrowedCount:     result.BorrowedCount(),
		BorrowedSummary:   result.Summary,
		CurrentlyBorrowed: details,
	}
}

func fromOverdue(result engine.OverdueReport) overdueResponse {
	books := make([]overdueBook, 0, len(result.Items))
	for _, item := range result.Items {
		books = append(books, overdueBook{
			TransactionID: item.LoanID,
			BookID:        item.BookID,
			Title:         item.Title,
			DueDate:       item.DueDate,
			DaysLate:      item.DaysLate,
			Fine:          item.Fine,
		})
	}

	message := "No overdue books."
	if len(books) > 0 {
		message = fmt.Sprintf("%d overdue books, total fine %d", len(books), result.TotalFine)
	}

	return overdueResponse{
		envelope:     ok(message),
		StudentID:    result.StudentID,
		StudentName:  result.StudentName,
		AsOf:         result.AsOf,
		OverdueBooks: books,
		TotalFine:    result.TotalFine,
	}
}

// fromReply renders a routed request like the endpoint of the operation it ran.
func fromReply(reply intent.Reply) any {
	switch {
	case reply.Borrow != nil:
		return fromBorrow(*reply.Borrow)
	case reply.ReturnChoices != nil:
		response := fromActiveLoans(*reply.ReturnChoices)
		response.Message = reply.Message
		return response
	case reply.Status != nil:
		return fromStatus(*reply.Status)
	case reply.Recommendation != nil:
		return fromRecommendation(*reply.Recommendation)
	case reply.Available != nil:
		return fromAvailableBooks(*reply.Available)
	case reply.Search != nil:
		return fromSearch(*reply.Search)
	case reply.Check != nil:
		return fromCheck(*reply.Check)
	case reply.Overdue != nil:
		return fromOverdue(*reply.Overdue)
	default:
		return ok(reply.Message)
	}
}
