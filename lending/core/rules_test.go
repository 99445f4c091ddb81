package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

func Test_Book_HasTag_IsCaseInsensitiveExactMatch(t *testing.T) {
	book := core.Book{Tags: []string{"Mechanics", "waves"}}

	assert.True(t, book.HasTag("mechanics"))
	assert.True(t, book.HasTag("WAVES"))
	assert.False(t, book.HasTag("mech"), "tags never match by substring")
}

func Test_Book_TitleContains_IsCaseInsensitiveSubstring(t *testing.T) {
	book := core.Book{Title: "Concepts of Physics"}

	assert.True(t, book.TitleContains("physics"))
	assert.True(t, book.TitleContains("OF PHY"))
	assert.False(t, book.TitleContains("chemistry"))
}

func Test_Student_LoanList(t *testing.T) {
	// arrange
	student := core.Student{BorrowLimit: 2, ActiveBorrowings: []string{"txn_1"}}

	// act
	added := student.WithLoan("txn_2")
	removed := added.WithoutLoan("txn_1")

	// assert
	assert.True(t, student.CanBorrow())
	assert.False(t, added.CanBorrow())
	assert.Equal(t, []string{"txn_1"}, student.ActiveBorrowings, "WithLoan must not alias the original list")
	assert.Equal(t, []string{"txn_1", "txn_2"}, added.ActiveBorrowings)
	assert.Equal(t, []string{"txn_2"}, removed.ActiveBorrowings)
	assert.Equal(t, removed, removed.WithoutLoan("txn_9"))
}

func Test_Decide(t *testing.T) {
	full := core.Student{BorrowLimit: 1, ActiveBorrowings: []string{"txn_1"}}
	empty := core.Student{BorrowLimit: 1}

	testCases := []struct {
		name               string
		decision           core.DecisionResult
		expectedIdempotent bool
		expectedErr        error
	}{
		{name: "take copy", decision: core.DecideTakeCopy(core.Book{AvailableCopies: 1, TotalCopies: 1})},
		{name: "take last copy twice", decision: core.DecideTakeCopy(core.Book{TotalCopies: 1}), expectedErr: core.ErrNoCopiesAvailable},
		{name: "return copy", decision: core.DecideReturnCopy(core.Book{AvailableCopies: 0, TotalCopies: 1})},
		{name: "return copy clamps", decision: core.DecideReturnCopy(core.Book{AvailableCopies: 1, TotalCopies: 1}), expectedIdempotent: true},
		{name: "add loan", decision: core.DecideAddLoan(empty, "txn_2")},
		{name: "add loan over limit", decision: core.DecideAddLoan(full, "txn_2"), expectedErr: core.ErrBorrowLimitReached},
		{name: "add listed loan", decision: core.DecideAddLoan(full, "txn_1"), expectedIdempotent: true},
		{name: "remove loan", decision: core.DecideRemoveLoan(full, "txn_1")},
		{name: "remove unlisted loan", decision: core.DecideRemoveLoan(empty, "txn_1"), expectedIdempotent: true},
		{name: "mark returned", decision: core.DecideMarkReturned(core.Loan{})},
		{name: "mark returned twice", decision: core.DecideMarkReturned(core.Loan{Returned: true}), expectedErr: core.ErrAlreadyReturned},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedIdempotent, tc.decision.IsIdempotent())

			if tc.expectedErr == nil {
				assert.NoError(t, tc.decision.HasError())
				return
			}

			assert.ErrorIs(t, tc.decision.HasError(), tc.expectedErr)
		})
	}
}

func Test_RankForRecommendation(t *testing.T) {
	// arrange
	books := []core.Book{
		{ID: "b4", AvailableCopies: 1},
		{ID: "b3", AvailableCopies: 5},
		{ID: "b1", AvailableCopies: 2},
		{ID: "b2", AvailableCopies: 5},
		{ID: "b0", AvailableCopies: 0},
	}

	// act
	ranked := core.RankForRecommendation(books)

	// assert
	ids := make([]string, 0, len(ranked))
	for _, b := range ranked {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"b2", "b3", "b1"}, ids, "descending availability, ties by ascending id, top 3")
	assert.Equal(t, "b4", books[0].ID, "input must not be reordered")
}

func Test_FilterByTag_And_AnyAvailable(t *testing.T) {
	books := []core.Book{
		{ID: "b1", Tags: []string{"Optics"}},
		{ID: "b2", Tags: []string{"optics", "lasers"}, AvailableCopies: 1},
		{ID: "b3", Tags: []string{"thermo"}},
	}

	assert.Len(t, core.FilterByTag(books, "OPTICS"), 2)
	assert.Len(t, core.FilterByTag(books, ""), 3)
	assert.Empty(t, core.FilterByTag(books, "opt"))
	assert.True(t, core.AnyAvailable(books))
	assert.False(t, core.AnyAvailable(books[:1]))
}

func Test_FirstTitleMatch_UsesGivenOrder(t *testing.T) {
	books := []core.Book{{ID: "a", Title: "Physics II"}, {ID: "b", Title: "Physics I"}}

	match, ok := core.FirstTitleMatch(books, "physics")

	assert.True(t, ok)
	assert.Equal(t, "a", match.ID)

	_, ok = core.FirstTitleMatch(books, "biology")
	assert.False(t, ok)
}
