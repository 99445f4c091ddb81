package intent

import (
	"context"
)

// FallbackClassifier asks its classifiers in order and returns the first Resolution that is
// not Unknown. Failures move on to the next classifier. When every classifier fails or answers
// Unknown the result is Unknown and the errors are dropped.
type FallbackClassifier struct {
	classifiers []Classifier
	onFailure   func(ctx context.Context, position int, err error)
}

// NewFallbackClassifier chains classifiers. Nil entries are skipped. onFailure, when not nil,
// is called for every failing classifier with its position in the chain.
func NewFallbackClassifier(onFailure func(ctx context.Context, position int, err error), classifiers ...Classifier) *FallbackClassifier {
	chain := make([]Classifier, 0, len(classifiers))
	for _, c := range classifiers {
		if c != nil {
			chain = append(chain, c)
		}
	}

	return &FallbackClassifier{classifiers: chain, onFailure: onFailure}
}

// Resolve implements Classifier. It only fails when ctx is done.
func (f *FallbackClassifier) Resolve(ctx context.Context, text string) (Resolution, error) {
	for i, c := range f.classifiers {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}

		resolution, err := c.Resolve(ctx, text)
		if err != nil {
			if f.onFailure != nil {
				f.onFailure(ctx, i, err)
			}

			continue
		}

		if resolution.Intent != Unknown {
			return resolution, nil
		}
	}

	return UnknownResolution(), nil
}
