// Package inventory tracks the copy counts of books and looks books up by subject or title.
package inventory

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	OperationDecrementAvailable = "decrement_available"
	OperationIncrementAvailable = "increment_available"

	fieldSubject         = "subject"
	fieldAvailableCopies = "available_copies"

	logAttrTotalCopies = "total_copies"
)

// Inventory is the BookInventory component.
type Inventory struct {
	store            shell.DocumentStore
	collection       string
	retry            shell.RetryPolicy
	logger           shell.Logger
	contextualLogger shell.ContextualLogger
}

// Option defines a functional option for configuring Inventory.
type Option func(*Inventory) error

// WithCollection sets the collection holding the books.
func WithCollection(collection string) Option {
	return func(i *Inventory) error {
		if collection == "" {
			return shell.ErrEmptyCollection
		}

		i.collection = collection

		return nil
	}
}

// WithRetryPolicy sets the retry behavior of the copy count updates.
func WithRetryPolicy(policy shell.RetryPolicy) Option {
	return func(i *Inventory) error {
		i.retry = policy
		return nil
	}
}

// WithLogger sets the logger for the Inventory.
func WithLogger(logger shell.Logger) Option {
	return func(i *Inventory) error {
		i.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Inventory.
func WithContextualLogger(logger shell.ContextualLogger) Option {
	return func(i *Inventory) error {
		i.contextualLogger = logger
		return nil
	}
}

// New creates an Inventory on store.
func New(store shell.DocumentStore, options ...Option) (*Inventory, error) {
	if store == nil {
		return nil, shell.ErrNilDocumentStore
	}

	i := &Inventory{
		store:      store,
		collection: core.BooksCollection,
	}

	for _, option := range options {
		if err := option(i); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// Get returns the book or core.ErrBookNotFound.
func (i *Inventory) Get(ctx context.Context, bookID core.BookIDString) (core.Book, error) {
	book, _, err := shell.LoadDocument[core.Book](ctx, i.store, i.collection, bookID, core.ErrBookNotFound)

	return book, err
}

// FindBySubject returns the books whose subject equals subject exactly.
func (i *Inventory) FindBySubject(ctx context.Context, subject string) ([]core.Book, error) {
	return shell.FindDocuments[core.Book](ctx, i.store, i.collection, docstore.Select().Eq(fieldSubject, subject))
}

// FindAvailable returns the books with at least one copy available.
func (i *Inventory) FindAvailable(ctx context.Context) ([]core.Book, error) {
	return shell.FindDocuments[core.Book](ctx, i.store, i.collection, docstore.Select().Gt(fieldAvailableCopies, 0))
}

// FindByTitleFragment returns the first book, in store enumeration order (ascending id),
// whose title contains fragment case-insensitively. No match is core.ErrBookNotFound.
func (i *Inventory) FindByTitleFragment(ctx context.Context, fragment string) (core.Book, error) {
	books, err := shell.FindDocuments[core.Book](ctx, i.store, i.collection, docstore.Select())
	if err != nil {
		return core.Book{}, err
	}

	book, ok := core.FirstTitleMatch(books, fragment)
	if !ok {
		return core.Book{}, core.ErrBookNotFound
	}

	return book, nil
}

// DecrementAvailable takes one copy out. It fails with core.ErrBookNotFound or
// core.ErrNoCopiesAvailable, and with core.ErrConflict once retries are exhausted.
func (i *Inventory) DecrementAvailable(ctx context.Context, bookID core.BookIDString) (core.Book, error) {
	result, err := shell.UpdateDocument(ctx, i.store, i.collection, bookID, core.ErrBookNotFound, shell.Mutation[core.Book]{
		Operation: OperationDecrementAvailable,
		Decide:    core.DecideTakeCopy,
		Apply: func(b core.Book) core.Book {
			b.AvailableCopies--
			return b
		},
	}, i.retry)

	return result.State, err
}

// IncrementAvailable puts one copy back. The count is clamped at total_copies: a return that
// would exceed it is not counted, reported as clamped and logged.
func (i *Inventory) IncrementAvailable(ctx context.Context, bookID core.BookIDString) (book core.Book, clamped bool, err error) {
	result, err := shell.UpdateDocument(ctx, i.store, i.collection, bookID, core.ErrBookNotFound, shell.Mutation[core.Book]{
		Operation: OperationIncrementAvailable,
		Decide:    core.DecideReturnCopy,
		Apply: func(b core.Book) core.Book {
			b.AvailableCopies++
			return b
		},
	}, i.retry)
	if err != nil {
		return result.State, false, err
	}

	if result.Idempotent {
		shell.LogWarn(ctx, i.logger, i.contextualLogger, shell.LogMsgClampedReturn,
			shell.LogAttrBookID, bookID,
			logAttrTotalCopies, result.State.TotalCopies)
		shell.IncrementCounter(ctx, i.retry.Metrics, shell.ClampedReturnsMetric, map[string]string{
			shell.LogAttrOperation: OperationIncrementAvailable,
		})
	}

	return result.State, result.Idempotent, nil
}
