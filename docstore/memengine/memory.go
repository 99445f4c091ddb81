// Package memengine provides an in-memory implementation of docstore.Store.
//
// It honors the same revision semantics and enumeration order as the database engines,
// which makes it the engine of choice for unit tests and ephemeral runs.
package memengine

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

const engineName = "memory"

// Store keeps documents in maps guarded by a single RWMutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Document
	newID       func() string
	inst        docstore.Instrumentation
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store.
func WithLogger(logger docstore.Logger) Option {
	return func(s *Store) error {
		s.inst.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
func WithContextualLogger(logger docstore.ContextualLogger) Option {
	return func(s *Store) error {
		s.inst.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
func WithMetrics(collector docstore.MetricsCollector) Option {
	return func(s *Store) error {
		s.inst.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
func WithTracing(collector docstore.TracingCollector) Option {
	return func(s *Store) error {
		s.inst.Tracing = collector
		return nil
	}
}

// WithIDGenerator replaces the generator used by Create.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) error {
		s.newID = newID
		return nil
	}
}

// NewStore creates an empty Store.
func NewStore(options ...Option) (*Store, error) {
	s := &Store{
		collections: make(map[string]map[string]docstore.Document),
		newID:       uuid.NewString,
		inst:        docstore.Instrumentation{Engine: engineName},
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Get returns the document stored under collection/id.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	_, obs := s.inst.Observe(ctx, docstore.OperationGet, collection)

	doc, err := s.get(ctx, collection, id)
	obs.Finish(err, docstore.AttrDocumentID, id)

	return doc, err
}

func (s *Store) get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}

	if err := docstore.ValidateKey(collection, id); err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}

	return copyDocument(doc), nil
}

// Put writes body under collection/id if the expectation holds and returns the new revision.
func (s *Store) Put(
	ctx context.Context,
	collection, id string,
	body []byte,
	expect docstore.Expectation,
) (docstore.Revision, error) {

	_, obs := s.inst.Observe(ctx, docstore.OperationPut, collection)

	revision, err := s.put(ctx, collection, id, body, expect)
	obs.Finish(err, docstore.AttrDocumentID, id, docstore.AttrExpect, expect.String())

	return revision, err
}

func (s *Store) put(
	ctx context.Context,
	collection, id string,
	body []byte,
	expect docstore.Expectation,
) (docstore.Revision, error) {

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := docstore.ValidateKey(collection, id); err != nil {
		return 0, err
	}

	if err := docstore.ValidateBody(body); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]docstore.Document)
		s.collections[collection] = docs
	}

	current, exists := docs[id]
	if !expect.Holds(current.Revision, exists) {
		return 0, docstore.ErrConcurrencyConflict
	}

	next := current.Revision + 1
	docs[id] = docstore.Document{ID: id, Revision: next, Body: slices.Clone(body)}

	return next, nil
}

// Find returns every document of the collection matching the selector, ordered by id.
func (s *Store) Find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, error) {
	_, obs := s.inst.Observe(ctx, docstore.OperationFind, collection)

	docs, err := s.find(ctx, collection, selector)
	if err == nil {
		obs.RecordCount(len(docs))
	}
	obs.Finish(err, docstore.AttrCount, len(docs))

	return docs, err
}

func (s *Store) find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if collection == "" {
		return nil, docstore.ErrEmptyCollectionName
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	result := make([]docstore.Document, 0)
	for _, id := range ids {
		doc := docs[id]

		matches, err := selector.Matches(doc.Body)
		if err != nil {
			return nil, err
		}

		if matches {
			result = append(result, copyDocument(doc))
		}
	}

	return result, nil
}

// Create stores body under a freshly generated id.
func (s *Store) Create(ctx context.Context, collection string, body []byte) (string, docstore.Revision, error) {
	id := s.newID()

	revision, err := s.Put(ctx, collection, id, body, docstore.ExpectAbsent())
	if err != nil {
		return "", 0, err
	}

	return id, revision, nil
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.collections[collection])
}

func copyDocument(doc docstore.Document) docstore.Document {
	return docstore.Document{ID: doc.ID, Revision: doc.Revision, Body: slices.Clone(doc.Body)}
}

var _ docstore.Store = (*Store)(nil)
