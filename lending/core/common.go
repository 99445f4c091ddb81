package core

const (
	// LoanPeriodDays is the number of days between borrowing and the due date.
	LoanPeriodDays = 14

	// FinePerDay is the fine charged per day a loan is overdue.
	FinePerDay = 5

	// RecommendationLimit is the maximum number of recommended books.
	RecommendationLimit = 3

	// Default collection names.
	BooksCollection    = "books"
	LoansCollection    = "loans"
	StudentsCollection = "students"
)

// Collections names the three collections of the lending domain.
type Collections struct {
	Books    string
	Loans    string
	Students string
}

// DefaultCollections returns the default collection names.
func DefaultCollections() Collections {
	return Collections{
		Books:    BooksCollection,
		Loans:    LoansCollection,
		Students: StudentsCollection,
	}
}

// Instead of implementing full value objects, I'm using some alias types here ...

// BookIDString represents a book identifier
type BookIDString = string

// StudentIDString represents a student identifier
type StudentIDString = string

// LoanIDString represents a loan (transaction) identifier
type LoanIDString = string
