package observable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
	"github.com/AntonStoeckl/library-lending-go/lending/shell/observable"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
	"github.com/AntonStoeckl/library-lending-go/testutil/testdoubles"
)

type spies struct {
	metrics *testdoubles.MetricsCollectorSpy
	tracing *testdoubles.TracingCollectorSpy
	logger  *testdoubles.LoggerSpy
}

func newWrapper(t *testing.T, set fixtures.Set) (*observable.ServiceWrapper, spies) {
	t.Helper()

	e, err := engine.New(fixtures.NewMemoryStore(t, set))
	require.NoError(t, err)

	s := spies{
		metrics: testdoubles.NewMetricsCollectorSpy(),
		tracing: testdoubles.NewTracingCollectorSpy(),
		logger:  testdoubles.NewLoggerSpy(),
	}

	wrapper, err := observable.NewServiceWrapper(e,
		observable.WithMetrics(s.metrics),
		observable.WithTracing(s.tracing),
		observable.WithContextualLogging(s.logger),
	)
	require.NoError(t, err)

	return wrapper, s
}

func Test_NewServiceWrapper_RequiresService(t *testing.T) {
	_, err := observable.NewServiceWrapper(nil)

	assert.ErrorIs(t, err, observable.ErrNilService)
}

func Test_ServiceWrapper_Success(t *testing.T) {
	// arrange
	wrapper, s := newWrapper(t, fixtures.Default())

	// act
	result, err := wrapper.Borrow(context.Background(), "S001", "organic")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "B006", result.BookID)

	assert.True(t, s.metrics.HasCounterRecordForMetric(shell.OperationCallsMetric).
		WithOperation(engine.OperationBorrow).
		WithStatus(shell.StatusSuccess).
		Assert(), "Should record the call")
	assert.True(t, s.metrics.HasDurationRecordForMetric(shell.OperationDurationMetric).
		WithOperation(engine.OperationBorrow).
		Assert(), "Should record the duration")

	spans := s.tracing.SpansNamed("lending.borrow")
	require.Len(t, spans, 1)
	assert.True(t, spans[0].Finished)
	assert.Equal(t, shell.StatusSuccess, spans[0].Status)

	assert.True(t, s.logger.HasDebugLog(shell.LogMsgOperationStarted))
	assert.True(t, s.logger.HasInfoLog(shell.LogMsgOperationCompleted))
}

func Test_ServiceWrapper_BusinessFailureIsRejected(t *testing.T) {
	// arrange
	wrapper, s := newWrapper(t, fixtures.Default())

	// act
	_, err := wrapper.Borrow(context.Background(), "S001", "general physics")

	// assert
	assert.ErrorIs(t, err, core.ErrNoCopiesAvailable)
	assert.True(t, s.metrics.HasCounterRecordForMetric(shell.OperationRejectedMetric).
		WithOperation(engine.OperationBorrow).
		Assert(), "Should count the rejection")
	assert.False(t, s.logger.HasErrorLog(shell.LogMsgOperationFailed), "Rejections are not errors")
	assert.True(t, s.logger.HasInfoLog(shell.LogMsgOperationRejected))

	spans := s.tracing.SpansNamed("lending.borrow")
	require.Len(t, spans, 1)
	assert.Equal(t, shell.StatusRejected, spans[0].Status)
	assert.Equal(t, string(core.KindNoCopiesAvailable), spans[0].EndAttributes[shell.LogAttrBusinessOutcome])
}

func Test_ServiceWrapper_CanceledContext(t *testing.T) {
	// arrange
	wrapper, s := newWrapper(t, fixtures.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, err := wrapper.Status(ctx, "S001")

	// assert
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.metrics.HasCounterRecordForMetric(shell.OperationCanceledMetric).
		WithOperation(engine.OperationStatus).
		Assert())
	assert.True(t, s.logger.HasErrorLog(shell.LogMsgOperationFailed))
}

func Test_ServiceWrapper_ClampedReturnIsIdempotent(t *testing.T) {
	// arrange
	set := fixtures.Default()
	set.Loans = []fixtures.LoanFixture{{ID: "txn_1", BookID: "B002", StudentID: "S001", BorrowedOn: "2025-03-01"}}
	wrapper, s := newWrapper(t, set)

	// act
	result, err := wrapper.ReturnLoan(context.Background(), "txn_1")

	// assert
	require.NoError(t, err)
	assert.True(t, result.Clamped)
	assert.True(t, s.metrics.HasCounterRecordForMetric(shell.OperationCallsMetric).
		WithOperation(engine.OperationReturn).
		WithStatus(shell.StatusIdempotent).
		Assert())
}

func Test_ServiceWrapper_DelegatesEveryOperation(t *testing.T) {
	// arrange
	wrapper, s := newWrapper(t, fixtures.Default())
	ctx := context.Background()

	// act
	_, _ = wrapper.ListActiveLoans(ctx, "S001")
	_, _ = wrapper.Overdue(ctx, "S001")
	_, _ = wrapper.Search(ctx, "Physics", "")
	_, _ = wrapper.Recommend(ctx, "Physics")
	_, _ = wrapper.Check(ctx, "Physics")
	_, _ = wrapper.AvailableBooks(ctx)
	_, _ = wrapper.Login(ctx, "S001")
	_, _ = wrapper.Reconcile(ctx, "S001")
	_, _ = wrapper.ReconcileAll(ctx)

	// assert
	for _, operation := range []string{
		engine.OperationListActiveLoans,
		engine.OperationOverdue,
		engine.OperationSearch,
		engine.OperationRecommend,
		engine.OperationCheck,
		engine.OperationAvailableBooks,
		engine.OperationLogin,
		engine.OperationReconcile,
		engine.OperationReconcileAll,
	} {
		assert.Equal(t, 1, s.metrics.HasCounterRecordForMetric(shell.OperationCallsMetric).
			WithOperation(operation).
			WithStatus(shell.StatusSuccess).
			Count(), "operation %s", operation)
	}
}
