// Package fixtures loads lending seed data from YAML and writes it into a document store.
// It backs the `seed` command and the tests of the lending packages.
package fixtures

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

//go:embed library.yaml
var defaultLibrary []byte

var (
	ErrReadingFixturesFailed = errors.New("reading fixtures failed")
	ErrParsingFixturesFailed = errors.New("parsing fixtures failed")
	ErrInvalidFixture        = errors.New("invalid fixture")
	ErrSeedingFailed         = errors.New("seeding fixtures failed")
)

// BookFixture is the YAML shape of a book.
type BookFixture struct {
	ID              string   `yaml:"id"`
	Title           string   `yaml:"title"`
	Author          string   `yaml:"author"`
	Subject         string   `yaml:"subject"`
	Tags            []string `yaml:"tags"`
	AvailableCopies int      `yaml:"available_copies"`
	TotalCopies     int      `yaml:"total_copies"`
}

// StudentFixture is the YAML shape of a student.
type StudentFixture struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Branch           string   `yaml:"branch"`
	BorrowLimit      int      `yaml:"borrow_limit"`
	ActiveBorrowings []string `yaml:"active_borrowings"`
}

// LoanFixture is the YAML shape of a loan. Dates are YYYY-MM-DD; due_date defaults to
// borrowed_on plus the loan period.
type LoanFixture struct {
	ID         string `yaml:"id"`
	BookID     string `yaml:"book_id"`
	StudentID  string `yaml:"student_id"`
	BorrowedOn string `yaml:"borrowed_on"`
	DueDate    string `yaml:"due_date"`
	Returned   bool   `yaml:"returned"`
}

// Set is a complete seed data set.
type Set struct {
	Books    []BookFixture    `yaml:"books"`
	Students []StudentFixture `yaml:"students"`
	Loans    []LoanFixture    `yaml:"loans"`
}

// Default returns the embedded sample library.
func Default() Set {
	set, err := Parse(defaultLibrary)
	if err != nil {
		panic(err)
	}

	return set
}

// Load reads a fixture file.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, errors.Join(ErrReadingFixturesFailed, err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML seed data.
func Parse(data []byte) (Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return Set{}, errors.Join(ErrParsingFixturesFailed, err)
	}

	if err := set.validate(); err != nil {
		return Set{}, err
	}

	return set, nil
}

func (s Set) validate() error {
	for _, b := range s.Books {
		if b.ID == "" {
			return fmt.Errorf("%w: book %q without id", ErrInvalidFixture, b.Title)
		}

		book := b.toBook()
		if !book.WithinCopyBounds() {
			return fmt.Errorf("%w: book %s has %d of %d copies available", ErrInvalidFixture, b.ID, b.AvailableCopies, b.TotalCopies)
		}
	}

	for _, st := range s.Students {
		if st.ID == "" || st.BorrowLimit < 0 {
			return fmt.Errorf("%w: student %q", ErrInvalidFixture, st.ID)
		}
	}

	for _, l := range s.Loans {
		if _, err := l.toLoan(); err != nil {
			return err
		}
	}

	return nil
}

// Seed upserts every fixture into store. Seeding twice yields the same state.
func (s Set) Seed(ctx context.Context, store docstore.Store, collections core.Collections) error {
	for _, b := range s.Books {
		if err := put(ctx, store, collections.Books, b.ID, b.toBook()); err != nil {
			return err
		}
	}

	for _, st := range s.Students {
		if err := put(ctx, store, collections.Students, st.ID, st.toStudent()); err != nil {
			return err
		}
	}

	for _, l := range s.Loans {
		loan, err := l.toLoan()
		if err != nil {
			return err
		}

		if err = put(ctx, store, collections.Loans, l.ID, loan); err != nil {
			return err
		}
	}

	return nil
}

func put(ctx context.Context, store docstore.Store, collection, id string, v any) error {
	body, err := docstore.Encode(v)
	if err != nil {
		return errors.Join(ErrSeedingFailed, err)
	}

	if _, err = store.Put(ctx, collection, id, body, docstore.ExpectAny()); err != nil {
		return errors.Join(ErrSeedingFailed, fmt.Errorf("%s/%s", collection, id), err)
	}

	return nil
}

func (b BookFixture) toBook() core.Book {
	return core.Book{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Subject:         b.Subject,
		Tags:            b.Tags,
		AvailableCopies: b.AvailableCopies,
		TotalCopies:     b.TotalCopies,
	}
}

func (st StudentFixture) toStudent() core.Student {
	borrowings := st.ActiveBorrowings
	if borrowings == nil {
		borrowings = []string{}
	}

	return core.Student{
		ID:               st.ID,
		Name:             st.Name,
		Branch:           st.Branch,
		BorrowLimit:      st.BorrowLimit,
		ActiveBorrowings: borrowings,
	}
}

func (l LoanFixture) toLoan() (core.Loan, error) {
	if l.ID == "" || l.BookID == "" || l.StudentID == "" {
		return core.Loan{}, fmt.Errorf("%w: loan %q needs id, book_id and student_id", ErrInvalidFixture, l.ID)
	}

	borrowedOn, err := core.ParseDate(l.BorrowedOn)
	if err != nil {
		return core.Loan{}, fmt.Errorf("%w: loan %s: %w", ErrInvalidFixture, l.ID, err)
	}

	loan := core.NewLoan(l.ID, l.BookID, l.StudentID, borrowedOn)

	if l.DueDate != "" {
		if loan.DueDate, err = core.ParseDate(l.DueDate); err != nil {
			return core.Loan{}, fmt.Errorf("%w: loan %s: %w", ErrInvalidFixture, l.ID, err)
		}
	}

	if l.Returned {
		loan = loan.MarkedReturned(loan.DueDate)
	}

	return loan, nil
}
