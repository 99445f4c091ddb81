package intent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending/intent"
)

var errProviderDown = errors.New("provider down")

func answering(resolution intent.Resolution, calls *int) intent.Classifier {
	return intent.ClassifierFunc(func(context.Context, string) (intent.Resolution, error) {
		*calls++
		return resolution, nil
	})
}

func failing(calls *int) intent.Classifier {
	return intent.ClassifierFunc(func(context.Context, string) (intent.Resolution, error) {
		*calls++
		return intent.Resolution{}, errProviderDown
	})
}

func Test_FallbackClassifier_FirstKnownAnswerWins(t *testing.T) {
	// arrange
	var first, second, third int
	var failures []int
	classifier := intent.NewFallbackClassifier(
		func(_ context.Context, position int, err error) {
			assert.ErrorIs(t, err, errProviderDown)
			failures = append(failures, position)
		},
		failing(&first),
		nil,
		answering(intent.Resolution{Intent: intent.Check, Subject: "Physics"}, &second),
		answering(intent.Resolution{Intent: intent.List}, &third),
	)

	// act
	resolution, err := classifier.Resolve(context.Background(), "is there any physics book")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.Resolution{Intent: intent.Check, Subject: "Physics"}, resolution)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Zero(t, third, "later classifiers must not be asked")
	assert.Equal(t, []int{0}, failures)
}

func Test_FallbackClassifier_UnknownMovesOn(t *testing.T) {
	// arrange
	var first, second int
	classifier := intent.NewFallbackClassifier(nil,
		answering(intent.UnknownResolution(), &first),
		answering(intent.Resolution{Intent: intent.Status}, &second),
	)

	// act
	resolution, err := classifier.Resolve(context.Background(), "how am I doing")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.Status, resolution.Intent)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func Test_FallbackClassifier_AllFailIsUnknown(t *testing.T) {
	// arrange
	var first, second int
	classifier := intent.NewFallbackClassifier(nil, failing(&first), failing(&second))

	// act
	resolution, err := classifier.Resolve(context.Background(), "borrow")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.UnknownResolution(), resolution)
}

func Test_FallbackClassifier_EmptyChainIsUnknown(t *testing.T) {
	// act
	resolution, err := intent.NewFallbackClassifier(nil).Resolve(context.Background(), "borrow")

	// assert
	require.NoError(t, err)
	assert.Equal(t, intent.UnknownResolution(), resolution)
}

func Test_FallbackClassifier_CanceledContext(t *testing.T) {
	// arrange
	var calls int
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	classifier := intent.NewFallbackClassifier(nil, answering(intent.Resolution{Intent: intent.List}, &calls))

	// act
	_, err := classifier.Resolve(ctx, "list")

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
