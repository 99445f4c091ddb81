package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
	"github.com/AntonStoeckl/library-lending-go/testutil/testdoubles"
)

var errProcessDied = errors.New("process died")

// driftedLibrary has S001 with an active loan that never made it into the list (a borrow that
// stopped after the book write) plus stale ids, and S002 listing a loan of S003.
func driftedLibrary() fixtures.Set {
	set := loanedLibrary()
	set.Loans = append(set.Loans,
		fixtures.LoanFixture{ID: "txn_unlisted", BookID: "B002", StudentID: "S001", BorrowedOn: "2025-03-09"},
		fixtures.LoanFixture{ID: "txn_of_s003", BookID: "B006", StudentID: "S003", BorrowedOn: "2025-03-09"},
	)
	set.Students[1].ActiveBorrowings = []string{"txn_of_s003"}
	set.Students[2].ActiveBorrowings = []string{"txn_of_s003"}

	return set
}

func Test_Reconcile_RepairsStudentList(t *testing.T) {
	// arrange
	store := fixtures.NewMemoryStore(t, driftedLibrary())
	metrics := testdoubles.NewMetricsCollectorSpy()
	logger := testdoubles.NewLoggerSpy()
	e := newEngine(t, store, engine.WithMetrics(metrics), engine.WithContextualLogger(logger))

	// act
	report, err := e.Reconcile(context.Background(), "S001")

	// assert
	require.NoError(t, err)
	assert.True(t, report.Changed())
	assert.Equal(t, []string{"txn_unlisted"}, report.Reinserted)
	assert.Equal(t, []string{"txn_returned", "txn_missing"}, report.Dropped)
	assert.Equal(t, []string{"txn_current", "txn_overdue", "txn_unlisted"}, studentOf(t, store, "S001").ActiveBorrowings)
	assert.Equal(t, 3, metrics.HasCounterRecordForMetric(shell.ReconciledEntriesMetric).Count())
	assert.Equal(t, 1, metrics.HasCounterRecordForMetric(shell.ReconciledEntriesMetric).WithLabel("action", "reinsert").Count())
	assert.True(t, logger.HasWarnLog(shell.LogMsgReconciled))
}

func Test_Reconcile_ReinsertIgnoresBorrowLimit(t *testing.T) {
	// arrange
	set := driftedLibrary()
	set.Students[0].BorrowLimit = 2 // S001 already lists two active loans
	store := fixtures.NewMemoryStore(t, set)
	e := newEngine(t, store)

	// act
	report, err := e.Reconcile(context.Background(), "S001")

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_unlisted"}, report.Reinserted)
	assert.Len(t, studentOf(t, store, "S001").ActiveBorrowings, 3)
}

func Test_Reconcile_DropsLoanOfAnotherStudent(t *testing.T) {
	// arrange
	store := fixtures.NewMemoryStore(t, driftedLibrary())
	e := newEngine(t, store)

	// act
	report, err := e.Reconcile(context.Background(), "S002")

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"txn_of_s003"}, report.Dropped)
	assert.Empty(t, studentOf(t, store, "S002").ActiveBorrowings)
	assert.Equal(t, []string{"txn_of_s003"}, studentOf(t, store, "S003").ActiveBorrowings)
}

func Test_Reconcile_IsIdempotent(t *testing.T) {
	// arrange
	store := fixtures.NewMemoryStore(t, driftedLibrary())
	e := newEngine(t, store)
	_, err := e.Reconcile(context.Background(), "S001")
	require.NoError(t, err)

	// act
	report, err := e.Reconcile(context.Background(), "S001")

	// assert
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func Test_Reconcile_Rejections(t *testing.T) {
	e := newEngine(t, fixtures.NewMemoryStore(t, fixtures.Default()))

	_, err := e.Reconcile(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = e.Reconcile(context.Background(), "S404")
	assert.ErrorIs(t, err, core.ErrStudentNotFound)
}

func Test_ReconcileAll(t *testing.T) {
	// arrange
	store := fixtures.NewMemoryStore(t, driftedLibrary())
	e := newEngine(t, store, engine.WithReconcileConcurrency(2))

	// act
	reports, err := e.ReconcileAll(context.Background())

	// assert
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "S001", reports[0].StudentID)
	assert.True(t, reports[0].Changed())
	assert.Equal(t, "S002", reports[1].StudentID)
	assert.Equal(t, []string{"txn_of_s003"}, reports[1].Dropped)
	assert.Equal(t, "S003", reports[2].StudentID)
	assert.False(t, reports[2].Changed())
}

func Test_Reconcile_AfterInterruptedBorrow_ListsTheLoan(t *testing.T) {
	// arrange
	store := testdoubles.NewFaultInjectingStore(fixtures.NewMemoryStore(t, scenarioLibrary()))
	e := newEngine(t, store)

	// The process dies right before the student write: neither that write nor any compensation lands.
	var armed, crashed atomic.Bool
	armed.Store(true)
	store.OnPut(func(_ context.Context, collection, _ string) error {
		if !armed.Load() {
			return nil
		}

		if collection == core.StudentsCollection {
			crashed.Store(true)
		}

		if crashed.Load() {
			return errProcessDied
		}

		return nil
	})

	_, err := e.Borrow(context.Background(), "S1", "physics")
	require.ErrorIs(t, err, errProcessDied)
	armed.Store(false)

	anHourLater := newEngine(t, store, engine.WithClock(func() time.Time { return time.Now().Add(time.Hour) }))

	// act
	report, err := anHourLater.Reconcile(context.Background(), "S1")

	// assert
	require.NoError(t, err)
	require.Len(t, report.Reinserted, 1)
	assert.Equal(t, report.Reinserted, studentOf(t, store, "S1").ActiveBorrowings)
	assert.Equal(t, 0, bookOf(t, store, "B1").AvailableCopies)
	assert.True(t, loanOf(t, store, report.Reinserted[0]).IsActive())
}

func Test_Reconcile_DuringBorrows_KeepsBorrowLimit(t *testing.T) {
	// arrange
	store := testdoubles.NewFaultInjectingStore(fixtures.NewMemoryStore(t, scenarioLibrary()))
	e := newEngine(t, store, engine.WithClock(time.Now))

	// Both borrows of S1 (limit 1) have created their loan when the sweep runs, neither is listed yet.
	var bookWrites atomic.Int32
	var second engine.BorrowResult
	var secondErr, reconcileErr error
	var report engine.ReconcileReport

	store.OnPut(func(ctx context.Context, collection, _ string) error {
		if collection != core.BooksCollection {
			return nil
		}

		switch bookWrites.Add(1) {
		case 1:
			second, secondErr = e.Borrow(ctx, "S1", "algebra")
		case 2:
			report, reconcileErr = e.Reconcile(ctx, "S1")
		}

		return nil
	})

	// act
	_, firstErr := e.Borrow(context.Background(), "S1", "physics")

	// assert
	require.NoError(t, reconcileErr)
	assert.Empty(t, report.Reinserted)
	require.NoError(t, secondErr)
	assert.ErrorIs(t, firstErr, core.ErrBorrowLimitReached)
	assert.Equal(t, []string{second.LoanID}, studentOf(t, store, "S1").ActiveBorrowings)
	assert.Equal(t, 1, bookOf(t, store, "B1").AvailableCopies)
	assert.Equal(t, 1, bookOf(t, store, "B2").AvailableCopies)
}

func Test_Reconcile_SkipsLoanClosedSinceTheQuery(t *testing.T) {
	// arrange
	set := driftedLibrary()
	store := testdoubles.NewFaultInjectingStore(fixtures.NewMemoryStore(t, set))
	e := newEngine(t, store)

	// The unlisted loan gets returned between the active query and the re-insert.
	var returned atomic.Bool
	store.OnFind(func(ctx context.Context, collection string) {
		if collection != core.LoansCollection || returned.Swap(true) {
			return
		}

		_, err := e.ReturnLoan(ctx, "txn_unlisted")
		require.NoError(t, err)
	})

	// act
	report, err := e.Reconcile(context.Background(), "S001")

	// assert
	require.NoError(t, err)
	assert.Empty(t, report.Reinserted)
	assert.NotContains(t, studentOf(t, store, "S001").ActiveBorrowings, "txn_unlisted")
}

func Test_New_RejectsNegativeReconcileGrace(t *testing.T) {
	_, err := engine.New(fixtures.NewMemoryStore(t, scenarioLibrary()), engine.WithReconcileGrace(-time.Second))

	assert.ErrorIs(t, err, engine.ErrNegativeReconcileGrace)
}
