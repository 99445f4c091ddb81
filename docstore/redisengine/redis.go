// Package redisengine provides a Redis implementation of docstore.Store.
//
// Each document is a hash {rev, body} under "<prefix>:doc:<collection>:<id>". A sorted set
// "<prefix>:idx:<collection>" with all scores at 0 lists the ids, which Redis keeps in
// lexicographic byte order. Conditional writes run under WATCH, so a concurrent change to the
// document aborts the transaction and is reported as docstore.ErrConcurrencyConflict.
package redisengine

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

const (
	engineName       = "redis"
	defaultKeyPrefix = "lending"
	fieldRevision    = "rev"
	fieldBody        = "body"
)

// Store is a docstore.Store backed by Redis.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	newID     func() string
	inst      docstore.Instrumentation
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithKeyPrefix sets the prefix of all keys written by the Store.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) error {
		if prefix == "" {
			return ErrEmptyKeyPrefix
		}

		s.keyPrefix = prefix

		return nil
	}
}

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

// ErrEmptyKeyPrefix is returned by WithKeyPrefix for an empty prefix.
var ErrEmptyKeyPrefix = errors.New("redis key prefix must not be empty")

// NewStore creates a Store on an existing client. The client lifecycle is managed by the caller.
func NewStore(client redis.UniversalClient, options ...Option) (*Store, error) {
	if client == nil {
		return nil, docstore.ErrNilDatabaseConnection
	}

	s := &Store{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		newID:     uuid.NewString,
		inst:      docstore.Instrumentation{Engine: engineName},
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
	ctx, obs := s.inst.Observe(ctx, docstore.OperationGet, collection)

	doc, err := s.get(ctx, s.client, collection, id)
	obs.Finish(err, docstore.AttrDocumentID, id)

	return doc, err
}

func (s *Store) get(ctx context.Context, cmd redis.Cmdable, collection, id string) (docstore.Document, error) {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return docstore.Document{}, err
	}

	values, err := cmd.HMGet(ctx, s.documentKey(collection, id), fieldRevision, fieldBody).Result()
	if err != nil {
		return docstore.Document{}, errors.Join(docstore.ErrQueryingFailed, err)
	}

	return parseDocument(id, values)
}

// Put writes body under collection/id if the expectation holds and returns the new revision.
func (s *Store) Put(
	ctx context.Context,
	collection, id string,
	body []byte,
	expect docstore.Expectation,
) (docstore.Revision, error) {

	ctx, obs := s.inst.Observe(ctx, docstore.OperationPut, collection)

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

	if err := docstore.ValidateKey(collection, id); err != nil {
		return 0, err
	}

	if err := docstore.ValidateBody(body); err != nil {
		return 0, err
	}

	key := s.documentKey(collection, id)
	var next docstore.Revision

	txErr := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, exists, err := s.currentRevision(ctx, tx, collection, id)
		if err != nil {
			return err
		}

		if !expect.Holds(current, exists) {
			return docstore.ErrConcurrencyConflict
		}

		next = current + 1

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldRevision, uint64(next), fieldBody, string(body))
			pipe.ZAdd(ctx, s.indexKey(collection), redis.Z{Score: 0, Member: id})
			return nil
		})

		return err
	}, key)

	switch {
	case txErr == nil:
		return next, nil
	case errors.Is(txErr, redis.TxFailedErr), errors.Is(txErr, docstore.ErrConcurrencyConflict):
		return 0, docstore.ErrConcurrencyConflict
	case errors.Is(txErr, docstore.ErrQueryingFailed), errors.Is(txErr, docstore.ErrDecodingFailed):
		return 0, txErr
	default:
		return 0, errors.Join(docstore.ErrWritingFailed, txErr)
	}
}

func (s *Store) currentRevision(
	ctx context.Context,
	tx *redis.Tx,
	collection, id string,
) (docstore.Revision, bool, error) {

	doc, err := s.get(ctx, tx, collection, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	default:
		return doc.Revision, true, nil
	}
}

// Find returns every document of the collection matching the selector, ordered by id.
func (s *Store) Find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, error) {
	ctx, obs := s.inst.Observe(ctx, docstore.OperationFind, collection)

	docs, err := s.find(ctx, collection, selector)
	if err == nil {
		obs.RecordCount(len(docs))
	}
	obs.Finish(err, docstore.AttrCount, len(docs))

	return docs, err
}

func (s *Store) find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, error) {
	if collection == "" {
		return nil, docstore.ErrEmptyCollectionName
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, errors.Join(docstore.ErrQueryingFailed, err)
	}

	docs := make([]docstore.Document, 0, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, s.documentKey(collection, id), fieldRevision, fieldBody)
	}

	if _, execErr := pipe.Exec(ctx); execErr != nil {
		return nil, errors.Join(docstore.ErrQueryingFailed, execErr)
	}

	for i, id := range ids {
		doc, parseErr := parseDocument(id, cmds[i].Val())
		if errors.Is(parseErr, docstore.ErrNotFound) {
			continue
		}

		if parseErr != nil {
			return nil, parseErr
		}

		matches, matchErr := selector.Matches(doc.Body)
		if matchErr != nil {
			return nil, matchErr
		}

		if matches {
			docs = append(docs, doc)
		}
	}

	return docs, nil
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

func (s *Store) documentKey(collection, id string) string {
	return s.keyPrefix + ":doc:" + collection + ":" + id
}

func (s *Store) indexKey(collection string) string {
	return s.keyPrefix + ":idx:" + collection
}

// parseDocument turns an HMGET reply for [rev, body] into a Document.
func parseDocument(id string, values []any) (docstore.Document, error) {
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return docstore.Document{}, docstore.ErrNotFound
	}

	rawRevision, revOK := values[0].(string)
	rawBody, bodyOK := values[1].(string)
	if !revOK || !bodyOK {
		return docstore.Document{}, docstore.ErrDecodingFailed
	}

	revision, err := strconv.ParseUint(rawRevision, 10, 64)
	if err != nil {
		return docstore.Document{}, errors.Join(docstore.ErrDecodingFailed, err)
	}

	return docstore.Document{ID: id, Revision: docstore.Revision(revision), Body: []byte(rawBody)}, nil
}

var _ docstore.Store = (*Store)(nil)
