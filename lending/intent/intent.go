// Package intent turns free-text requests into lending operations.
//
// A Classifier resolves text into a Resolution, usually by asking a language model that answers
// with a small JSON object. ParseResolution reads such answers leniently. The Router dispatches
// a Resolution to the lending engine.
package intent

import (
	"context"
	"errors"
)

// Intent is the classified purpose of a request.
type Intent string

const (
	Borrow    Intent = "borrow"
	Return    Intent = "return"
	Status    Intent = "status"
	Recommend Intent = "recommend"
	List      Intent = "list"
	Search    Intent = "search"
	Check     Intent = "check"
	Overdue   Intent = "overdue"
	Unknown   Intent = "unknown"
)

// Intents lists every intent a classifier may answer with, Unknown last.
var Intents = []Intent{Borrow, Return, Status, Recommend, List, Search, Check, Overdue, Unknown}

// ErrEmptyEndpoint is returned when a RemoteClassifier is created without an endpoint.
var ErrEmptyEndpoint = errors.New("classifier endpoint must not be empty")

// Known reports whether i is one of Intents.
func (i Intent) Known() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}

	return false
}

// Resolution is the answer of a classifier. Fields the classifier did not fill are empty.
type Resolution struct {
	Intent  Intent
	Title   string
	Subject string
	Tag     string
}

// UnknownResolution is the Resolution of text nobody could classify.
func UnknownResolution() Resolution {
	return Resolution{Intent: Unknown}
}

// Classifier resolves free text into a Resolution.
type Classifier interface {
	Resolve(ctx context.Context, text string) (Resolution, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (Resolution, error)

// Resolve calls f.
func (f ClassifierFunc) Resolve(ctx context.Context, text string) (Resolution, error) {
	return f(ctx, text)
}
