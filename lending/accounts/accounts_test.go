package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-lending-go/lending/accounts"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
)

func newAccounts(t *testing.T) *accounts.Accounts {
	t.Helper()

	store := fixtures.NewMemoryStore(t, fixtures.Default())
	a, err := accounts.New(store, accounts.WithRetryPolicy(shell.RetryPolicy{
		Options: []shell.RetryOption{shell.WithBaseDelay(time.Millisecond), shell.WithMaxAttempts(20)},
	}))
	require.NoError(t, err)

	return a
}

func Test_Get(t *testing.T) {
	a := newAccounts(t)

	student, err := a.Get(context.Background(), "S001")
	require.NoError(t, err)
	assert.Equal(t, "S001", student.ID)
	assert.Equal(t, "Asha Rao", student.Name)

	_, err = a.Get(context.Background(), "S404")
	assert.ErrorIs(t, err, core.ErrStudentNotFound)
}

func Test_AddLoan_EnforcesLimitAndIsIdempotent(t *testing.T) {
	// arrange
	a := newAccounts(t)
	ctx := context.Background()

	// act
	first, err := a.AddLoan(ctx, "S002", "txn_1")
	require.NoError(t, err)
	repeated, repeatedErr := a.AddLoan(ctx, "S002", "txn_1")
	_, overLimitErr := a.AddLoan(ctx, "S002", "txn_2")
	canBorrow, err := a.CanBorrow(ctx, "S002")
	require.NoError(t, err)

	// assert
	assert.Equal(t, []string{"txn_1"}, first.ActiveBorrowings)
	assert.NoError(t, repeatedErr)
	assert.Equal(t, []string{"txn_1"}, repeated.ActiveBorrowings)
	assert.ErrorIs(t, overLimitErr, core.ErrBorrowLimitReached)
	assert.False(t, canBorrow)
}

func Test_ReinsertLoan_IgnoresLimit(t *testing.T) {
	// arrange
	a := newAccounts(t)
	ctx := context.Background()
	_, err := a.AddLoan(ctx, "S002", "txn_1")
	require.NoError(t, err)

	// act
	student, err := a.ReinsertLoan(ctx, "S002", "txn_0")

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_1", "txn_0"}, student.ActiveBorrowings)
}

func Test_RemoveLoan_IsTolerant(t *testing.T) {
	// arrange
	a := newAccounts(t)
	ctx := context.Background()
	_, err := a.AddLoan(ctx, "S001", "txn_1")
	require.NoError(t, err)
	_, err = a.AddLoan(ctx, "S001", "txn_2")
	require.NoError(t, err)

	// act
	student, err := a.RemoveLoan(ctx, "S001", "txn_1")
	require.NoError(t, err)
	unchanged, missingErr := a.RemoveLoan(ctx, "S001", "txn_1")

	// assert
	assert.Equal(t, []string{"txn_2"}, student.ActiveBorrowings)
	assert.NoError(t, missingErr)
	assert.Equal(t, []string{"txn_2"}, unchanged.ActiveBorrowings)
}

func Test_AddLoan_ConcurrentCallersRespectLimit(t *testing.T) {
	// arrange
	a := newAccounts(t)
	ctx := context.Background()
	loanIDs := []string{"txn_a", "txn_b", "txn_c", "txn_d", "txn_e"}
	var group errgroup.Group
	errs := make([]error, len(loanIDs))

	// act
	for i, loanID := range loanIDs {
		group.Go(func() error {
			_, errs[i] = a.AddLoan(ctx, "S003", loanID)
			return nil
		})
	}
	require.NoError(t, group.Wait())

	// assert
	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, core.ErrBorrowLimitReached)
			failures++
		}
	}

	student, err := a.Get(ctx, "S003")
	require.NoError(t, err)
	assert.Len(t, student.ActiveBorrowings, 2, "S003 has a borrow limit of 2")
	assert.Equal(t, 3, failures)
}

func Test_List(t *testing.T) {
	students, err := newAccounts(t).List(context.Background())

	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, "S001", students[0].ID)
}
