package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
)

// 2025-03-10, mid-morning
var now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time {
	return now
}

// scenarioLibrary is the library of the borrow/return walkthrough: one physics book with a
// single copy left and a student allowed one loan.
func scenarioLibrary() fixtures.Set {
	return fixtures.Set{
		Books: []fixtures.BookFixture{
			{ID: "B1", Title: "Physics Fundamentals", Author: "A. Author", Subject: "Physics", Tags: []string{"mechanics"}, AvailableCopies: 1, TotalCopies: 2},
			{ID: "B2", Title: "Linear Algebra Done Right", Author: "S. Axler", Subject: "Mathematics", Tags: []string{"algebra"}, AvailableCopies: 2, TotalCopies: 2},
		},
		Students: []fixtures.StudentFixture{
			{ID: "S1", Name: "Student One", Branch: "CSE", BorrowLimit: 1},
			{ID: "S2", Name: "Student Two", Branch: "ECE", BorrowLimit: 2},
		},
	}
}

func newEngine(t *testing.T, store docstore.Store, options ...engine.Option) *engine.Engine {
	t.Helper()

	defaults := []engine.Option{
		engine.WithClock(fixedClock),
		engine.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	}

	e, err := engine.New(store, append(defaults, options...)...)
	require.NoError(t, err, "creating the engine should not fail")

	return e
}

func load[T shell.Aggregate[T]](t *testing.T, store docstore.Store, collection, id string) T {
	t.Helper()

	doc, err := store.Get(context.Background(), collection, id)
	require.NoError(t, err, "loading %s/%s should not fail", collection, id)

	v, err := docstore.Decode[T](doc)
	require.NoError(t, err)

	return v.WithID(doc.ID)
}

func bookOf(t *testing.T, store docstore.Store, id string) core.Book {
	t.Helper()

	return load[core.Book](t, store, core.BooksCollection, id)
}

func studentOf(t *testing.T, store docstore.Store, id string) core.Student {
	t.Helper()

	return load[core.Student](t, store, core.StudentsCollection, id)
}

func loanOf(t *testing.T, store docstore.Store, id string) core.Loan {
	t.Helper()

	return load[core.Loan](t, store, core.LoansCollection, id)
}

func countDocuments(t *testing.T, store docstore.Store, collection string) int {
	t.Helper()

	docs, err := store.Find(context.Background(), collection, docstore.Select())
	require.NoError(t, err)

	return len(docs)
}
