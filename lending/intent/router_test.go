package intent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/intent"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
	"github.com/AntonStoeckl/library-lending-go/testutil/fixtures"
	"github.com/AntonStoeckl/library-lending-go/testutil/testdoubles"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
}

func newLibraryEngine(t *testing.T) *engine.Engine {
	t.Helper()

	e, err := engine.New(
		fixtures.NewMemoryStore(t, fixtures.Default()),
		engine.WithClock(fixedClock),
		engine.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	)
	require.NoError(t, err)

	return e
}

func resolvingTo(resolution intent.Resolution) intent.Classifier {
	return intent.ClassifierFunc(func(context.Context, string) (intent.Resolution, error) {
		return resolution, nil
	})
}

func newRouter(t *testing.T, service engine.Service, classifier intent.Classifier, options ...intent.RouterOption) *intent.Router {
	t.Helper()

	router, err := intent.NewRouter(service, classifier, options...)
	require.NoError(t, err)

	return router
}

func Test_NewRouter_Validation(t *testing.T) {
	_, err := intent.NewRouter(nil, resolvingTo(intent.UnknownResolution()))
	assert.ErrorIs(t, err, intent.ErrNilService)

	_, err = intent.NewRouter(newLibraryEngine(t), nil)
	assert.ErrorIs(t, err, intent.ErrNilClassifier)
}

func Test_Route_RequiresTextAndStudent(t *testing.T) {
	// arrange
	router := newRouter(t, newLibraryEngine(t), resolvingTo(intent.Resolution{Intent: intent.List}))

	// act
	_, errNoText := router.Route(context.Background(), "S001", "")
	_, errNoStudent := router.Route(context.Background(), "", "list books")

	// assert
	assert.ErrorIs(t, errNoText, core.ErrValidation)
	assert.Equal(t, "text and student_id required", core.MessageOf(errNoText))
	assert.ErrorIs(t, errNoStudent, core.ErrValidation)
}

func Test_Route_Borrow(t *testing.T) {
	// arrange
	router := newRouter(t, newLibraryEngine(t), resolvingTo(intent.Resolution{Intent: intent.Borrow, Title: "go programming"}))

	// act
	reply, err := router.Route(context.Background(), "S001", "I want the Go book")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.Borrow, reply.Intent)
	require.NotNil(t, reply.Borrow)
	assert.Equal(t, "B005", reply.Borrow.BookID)
	assert.Equal(t, "The Go Programming Language has been issued successfully.", reply.Message)
}

func Test_Route_BorrowFailureIsReturned(t *testing.T) {
	// arrange
	router := newRouter(t, newLibraryEngine(t), resolvingTo(intent.Resolution{Intent: intent.Borrow, Title: "general physics"}))

	// act
	_, err := router.Route(context.Background(), "S001", "lend me the Irodov problems book")

	// assert
	assert.ErrorIs(t, err, core.ErrNoCopiesAvailable)
}

func Test_Route_ReturnWithoutLoans(t *testing.T) {
	// arrange
	router := newRouter(t, newLibraryEngine(t), resolvingTo(intent.Resolution{Intent: intent.Return}))

	// act
	reply, err := router.Route(context.Background(), "S001", "I want to give a book back")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.MsgNothingToReturn, reply.Message)
	assert.Nil(t, reply.ReturnChoices)
}

func Test_Route_ReturnOffersActiveLoans(t *testing.T) {
	// arrange
	e := newLibraryEngine(t)
	borrowed, err := e.Borrow(context.Background(), "S001", "organic")
	require.NoError(t, err)

	router := newRouter(t, e, resolvingTo(intent.Resolution{Intent: intent.Return}))

	// act
	reply, err := router.Route(context.Background(), "S001", "I want to give a book back")

	// assert
	require.NoError(t, err)
	require.NotNil(t, reply.ReturnChoices)
	require.Equal(t, 1, reply.ReturnChoices.Count())
	assert.Equal(t, borrowed.LoanID, reply.ReturnChoices.Items[0].LoanID)
	assert.True(t, strings.HasPrefix(reply.Message, intent.MsgWhichToReturn), "message should ask which book")
	assert.Contains(t, reply.Message, "Organic Chemistry")
}

func Test_Route_ReadOperations(t *testing.T) {
	testCases := []struct {
		name       string
		resolution intent.Resolution
		check      func(t *testing.T, reply intent.Reply)
	}{
		{
			name:       "status",
			resolution: intent.Resolution{Intent: intent.Status},
			check: func(t *testing.T, reply intent.Reply) {
				require.NotNil(t, reply.Status)
				assert.Equal(t, "Asha Rao", reply.Status.Name)
				assert.Equal(t, "No active borrowings.", reply.Message)
			},
		},
		{
			name:       "recommend",
			resolution: intent.Resolution{Intent: intent.Recommend, Subject: "Physics"},
			check: func(t *testing.T, reply intent.Reply) {
				require.NotNil(t, reply.Recommendation)
				require.NotEmpty(t, reply.Recommendation.Books)
				assert.Equal(t, "B002", reply.Recommendation.Books[0].ID)
				assert.Equal(t, reply.Recommendation.Message, reply.Message)
			},
		},
		{
			name:       "list",
			resolution: intent.Resolution{Intent: intent.List},
			check: func(t *testing.T, reply intent.Reply) {
				require.NotNil(t, reply.Available)
				assert.Len(t, reply.Available.Books, 5)
			},
		},
		{
			name:       "search",
			resolution: intent.Resolution{Intent: intent.Search, Subject: "Physics", Tag: "optics"},
			check: func(t *testing.T, reply intent.Reply) {
				require.NotNil(t, reply.Search)
				require.Len(t, reply.Search.Books, 1)
				assert.Equal(t, "B001", reply.Search.Books[0].ID)
			},
		},
		{
			name:       "check",
			resolution: intent.Resolution{Intent: intent.Check, Subject: "Chemistry"},
			check: func(t *testing.T, reply intent.Reply) {
				require.NotNil(t, reply.Check)
				assert.True(t, reply.Check.Available)
			},
		},
		{
			name:       "overdue",
			resolution: intent.Resolution{Intent: intent.Overdue},
			check: func(t *testing.T, reply intent.Reply) {
				require.NotNil(t, reply.Overdue)
				assert.Empty(t, reply.Overdue.Items)
				assert.Zero(t, reply.Overdue.TotalFine)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			router := newRouter(t, newLibraryEngine(t), resolvingTo(tc.resolution))

			// act
			reply, err := router.Route(context.Background(), "S001", "some request")

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.resolution.Intent, reply.Intent)
			tc.check(t, reply)
		})
	}
}

func Test_Route_Unknown(t *testing.T) {
	// arrange
	router := newRouter(t, newLibraryEngine(t), resolvingTo(intent.UnknownResolution()))

	// act
	reply, err := router.Route(context.Background(), "S001", "sing me a song")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.Unknown, reply.Intent)
	assert.Equal(t, intent.MsgNotUnderstood, reply.Message)
}

func Test_Route_ClassifierFailureIsUnknown(t *testing.T) {
	// arrange
	logger := testdoubles.NewLoggerSpy()
	var calls int
	router := newRouter(t, newLibraryEngine(t), failing(&calls), intent.WithLogger(logger))

	// act
	reply, err := router.Route(context.Background(), "S001", "borrow physics")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.Unknown, reply.Intent)
	assert.Equal(t, intent.MsgNotUnderstood, reply.Message)
	assert.True(t, logger.HasWarnLog(intent.LogMsgClassifierFailed))
}
