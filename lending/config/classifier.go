package config

import (
	"context"
	"errors"
	"net/http"

	"github.com/AntonStoeckl/library-lending-go/lending/intent"
)

// NewClassifier builds the classifier chain of /smart_route: one RemoteClassifier per endpoint,
// tried in order. onFailure is told about every endpoint that failed and may be nil.
func NewClassifier(cfg IntentConfig, onFailure func(ctx context.Context, position int, err error)) (intent.Classifier, error) {
	if len(cfg.Endpoints) == 0 {
		return intent.ClassifierFunc(func(context.Context, string) (intent.Resolution, error) {
			return intent.UnknownResolution(), nil
		}), nil
	}

	options := []intent.RemoteOption{
		intent.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.Model != "" {
		options = append(options, intent.WithModel(cfg.Model))
	}
	if cfg.APIToken != "" {
		options = append(options, intent.WithAPIToken(cfg.APIToken))
	}

	classifiers := make([]intent.Classifier, 0, len(cfg.Endpoints))
	for _, endpoint := range cfg.Endpoints {
		classifier, err := intent.NewRemoteClassifier(endpoint, options...)
		if err != nil {
			return nil, errors.Join(ErrBuildingClassifier, err)
		}

		classifiers = append(classifiers, classifier)
	}

	return intent.NewFallbackClassifier(onFailure, classifiers...), nil
}
