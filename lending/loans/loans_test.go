package loans_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
)

var borrowDay = core.MustParseDate("2025-03-10")

func newLoans(t *testing.T, options ...loans.Option) *loans.Loans {
	t.Helper()

	l, err := loans.New(fixtures.NewMemoryStore(t, fixtures.Default()), options...)
	require.NoError(t, err)

	return l
}

func Test_NewLoanID(t *testing.T) {
	// act
	first, err := loans.NewLoanID()
	require.NoError(t, err)
	second, err := loans.NewLoanID()
	require.NoError(t, err)

	// assert
	assert.True(t, strings.HasPrefix(first, loans.LoanIDPrefix))
	assert.NotEqual(t, first, second)

	parsed, err := uuid.Parse(strings.TrimPrefix(first, loans.LoanIDPrefix))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func Test_CreatedAt(t *testing.T) {
	// arrange
	before := time.Now().Truncate(time.Millisecond)
	id, err := loans.NewLoanID()
	require.NoError(t, err)
	after := time.Now()

	// act
	createdAt, ok := loans.CreatedAt(id)

	// assert
	require.True(t, ok)
	assert.False(t, createdAt.Before(before))
	assert.False(t, createdAt.After(after))

	for _, foreign := range []string{"txn_1", "txn_unlisted", uuid.NewString(), "txn_" + uuid.NewString()} {
		_, ok = loans.CreatedAt(foreign)
		assert.False(t, ok, foreign)
	}
}

func Test_Create(t *testing.T) {
	// arrange
	l := newLoans(t)
	ctx := context.Background()

	// act
	loan, err := l.Create(ctx, "B001", "S001", borrowDay)
	require.NoError(t, err)
	stored, getErr := l.Get(ctx, loan.ID)

	// assert
	require.NoError(t, getErr)
	assert.Equal(t, "2025-03-24", loan.DueDate.String())
	assert.Equal(t, loan, stored)
	assert.True(t, stored.IsActive())
}

func Test_Create_DrawsNewIDOnCollision(t *testing.T) {
	// arrange
	ids := []string{"txn_fixed", "txn_fixed", "txn_other"}
	next := 0
	l := newLoans(t, loans.WithIDGenerator(func() (string, error) {
		id := ids[next]
		next++
		return id, nil
	}))
	ctx := context.Background()

	// act
	first, err := l.Create(ctx, "B001", "S001", borrowDay)
	require.NoError(t, err)
	second, err := l.Create(ctx, "B002", "S001", borrowDay)
	require.NoError(t, err)

	// assert
	assert.Equal(t, "txn_fixed", first.ID)
	assert.Equal(t, "txn_other", second.ID)
}

func Test_MarkReturned_ExactlyOnce(t *testing.T) {
	// arrange
	l := newLoans(t)
	ctx := context.Background()
	loan, err := l.Create(ctx, "B001", "S001", borrowDay)
	require.NoError(t, err)
	returnDay := borrowDay.AddDays(3)

	// act
	returned, err := l.MarkReturned(ctx, loan.ID, returnDay)
	require.NoError(t, err)
	_, secondErr := l.MarkReturned(ctx, loan.ID, returnDay)
	_, missingErr := l.MarkReturned(ctx, "txn_missing", returnDay)

	// assert
	assert.True(t, returned.Returned)
	assert.Equal(t, returnDay.String(), returned.ReturnedOn.String())
	assert.ErrorIs(t, secondErr, core.ErrAlreadyReturned)
	assert.ErrorIs(t, missingErr, core.ErrLoanNotFound)
}

func Test_Void(t *testing.T) {
	// arrange
	l := newLoans(t)
	ctx := context.Background()
	loan, err := l.Create(ctx, "B001", "S001", borrowDay)
	require.NoError(t, err)

	// act
	voided, err := l.Void(ctx, loan.ID, borrowDay, "Borrow limit reached")
	require.NoError(t, err)
	again, againErr := l.Void(ctx, loan.ID, borrowDay, "other reason")

	// assert
	assert.True(t, voided.IsVoided())
	assert.NoError(t, againErr)
	assert.Equal(t, "Borrow limit reached", again.VoidReason)
}

func Test_ListActiveByStudent(t *testing.T) {
	// arrange
	l := newLoans(t)
	ctx := context.Background()
	active, err := l.Create(ctx, "B001", "S001", borrowDay)
	require.NoError(t, err)
	returned, err := l.Create(ctx, "B002", "S001", borrowDay)
	require.NoError(t, err)
	_, err = l.Create(ctx, "B002", "S002", borrowDay)
	require.NoError(t, err)
	_, err = l.MarkReturned(ctx, returned.ID, borrowDay)
	require.NoError(t, err)

	// act
	list, err := l.ListActiveByStudent(ctx, "S001")

	// assert
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}
