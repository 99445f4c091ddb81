package shell

import (
	"context"
	"errors"
	"slices"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

var (
	// ErrNilDocumentStore is returned when a component is created without a store.
	ErrNilDocumentStore = errors.New("document store must not be nil")

	// ErrEmptyCollection is returned when a component is configured with an empty collection name.
	ErrEmptyCollection = errors.New("collection name must not be empty")
)

// DocumentStore is the part of docstore.Store the lending components need.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (docstore.Document, error)
	Put(ctx context.Context, collection, id string, body []byte, expect docstore.Expectation) (docstore.Revision, error)
	Find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, error)
}

// Aggregate is a domain type stored as one document, keyed outside its body.
type Aggregate[T any] interface {
	WithID(id string) T
}

// Mutation describes one read-decide-write cycle on an aggregate.
type Mutation[T any] struct {
	// Operation names the mutation in retry metrics.
	Operation string

	// Decide inspects the current state. An idempotent decision ends the cycle without a write.
	Decide func(current T) core.DecisionResult

	// Apply returns the new state. It is only called after a success decision.
	Apply func(current T) T
}

// MutationResult represents the outcome of an UpdateDocument call.
type MutationResult[T any] struct {
	// State is the aggregate after the mutation, or the unchanged aggregate for idempotent outcomes.
	State T

	// Idempotent indicates that no write was needed.
	Idempotent bool

	// Revision is the document revision after the mutation.
	Revision docstore.Revision

	// Retry describes the attempts made.
	Retry RetryMetrics
}

// RetryPolicy bundles the retry options of a component with its metrics collector.
// The zero value retries with the defaults and records nothing.
type RetryPolicy struct {
	Options []RetryOption
	Metrics MetricsCollector
}

// For returns the retry options for one named mutation.
func (p RetryPolicy) For(operation string) []RetryOption {
	options := slices.Clone(p.Options)
	if p.Metrics != nil && operation != "" {
		options = append(options, WithMetrics(p.Metrics, operation))
	}

	return options
}

// TranslateStoreError maps store errors onto the lending failure taxonomy.
// Lending failures and context errors pass through unchanged.
func TranslateStoreError(err error) error {
	var failure *core.Failure

	switch {
	case err == nil:
		return nil
	case errors.As(err, &failure):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, docstore.ErrConcurrencyConflict):
		return errors.Join(core.ErrConflict, err)
	default:
		return errors.Join(core.ErrStoreUnavailable, err)
	}
}

// LoadDocument reads and decodes one aggregate. A missing document yields notFound.
func LoadDocument[T Aggregate[T]](
	ctx context.Context,
	store DocumentStore,
	collection string,
	id string,
	notFound error,
) (T, docstore.Revision, error) {
	var zero T

	doc, err := store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return zero, 0, notFound
	}

	if err != nil {
		return zero, 0, TranslateStoreError(err)
	}

	aggregate, err := docstore.Decode[T](doc)
	if err != nil {
		return zero, 0, TranslateStoreError(err)
	}

	return aggregate.WithID(doc.ID), doc.Revision, nil
}

// FindDocuments returns the decoded aggregates matching selector, in store enumeration order.
func FindDocuments[T Aggregate[T]](
	ctx context.Context,
	store DocumentStore,
	collection string,
	selector docstore.Selector,
) ([]T, error) {
	docs, err := store.Find(ctx, collection, selector)
	if err != nil {
		return nil, TranslateStoreError(err)
	}

	aggregates := make([]T, 0, len(docs))
	for _, doc := range docs {
		aggregate, decodeErr := docstore.Decode[T](doc)
		if decodeErr != nil {
			return nil, TranslateStoreError(decodeErr)
		}

		aggregates = append(aggregates, aggregate.WithID(doc.ID))
	}

	return aggregates, nil
}

// UpdateDocument runs mutation as a revision-conditioned read-modify-write and retries the
// whole cycle when a concurrent writer got in between. Exhausted retries surface as core.ErrConflict.
//
//	result, err := shell.UpdateDocument(ctx, store, "books", bookID, core.ErrBookNotFound, shell.Mutation[core.Book]{
//		Operation: "decrement_available",
//		Decide:    core.DecideTakeCopy,
//		Apply:     func(b core.Book) core.Book { b.AvailableCopies--; return b },
//	}, policy)
func UpdateDocument[T Aggregate[T]](
	ctx context.Context,
	store DocumentStore,
	collection string,
	id string,
	notFound error,
	mutation Mutation[T],
	policy RetryPolicy,
) (MutationResult[T], error) {
	var result MutationResult[T]

	retryMetrics, err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		current, revision, loadErr := LoadDocument[T](ctx, store, collection, id, notFound)
		if loadErr != nil {
			return loadErr
		}

		decision := mutation.Decide(current)
		if decisionErr := decision.HasError(); decisionErr != nil {
			return decisionErr
		}

		if decision.IsIdempotent() {
			result.State = current
			result.Revision = revision
			result.Idempotent = true

			return nil
		}

		next := mutation.Apply(current)

		body, encodeErr := docstore.Encode(next)
		if encodeErr != nil {
			return encodeErr
		}

		newRevision, putErr := store.Put(ctx, collection, id, body, docstore.ExpectRevision(revision))
		if putErr != nil {
			return putErr
		}

		result.State = next
		result.Revision = newRevision
		result.Idempotent = false

		return nil
	}, policy.For(mutation.Operation)...)

	result.Retry = retryMetrics

	if err != nil {
		return result, TranslateStoreError(err)
	}

	return result, nil
}
