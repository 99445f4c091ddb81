package testdoubles

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

// PutHook runs before a write reaches the wrapped store. A non-nil error fails the write.
type PutHook func(ctx context.Context, collection, id string) error

// FindHook runs after a selector query returned from the wrapped store.
type FindHook func(ctx context.Context, collection string)

// FaultInjectingStore wraps a docstore.Store and fails selected calls on demand.
type FaultInjectingStore struct {
	docstore.Store

	mu                sync.Mutex
	pendingConflicts  map[string]int
	putErrors         map[string]error
	getErrors         map[string]error
	findErrors        map[string]error
	putHooks          []PutHook
	findHooks         []FindHook
	injectedConflicts int
	putCalls          map[string]int
	replicaReads      map[string]int
}

// NewFaultInjectingStore wraps store without any faults.
func NewFaultInjectingStore(store docstore.Store) *FaultInjectingStore {
	return &FaultInjectingStore{
		Store:            store,
		pendingConflicts: make(map[string]int),
		putErrors:        make(map[string]error),
		getErrors:        make(map[string]error),
		findErrors:       make(map[string]error),
		putCalls:         make(map[string]int),
		replicaReads:     make(map[string]int),
	}
}

// InjectConflicts makes the next n writes to collection fail with docstore.ErrConcurrencyConflict.
func (s *FaultInjectingStore) InjectConflicts(collection string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingConflicts[collection] += n
}

// FailPuts makes every write to collection fail with err until cleared with a nil err.
func (s *FaultInjectingStore) FailPuts(collection string, err error) {
	s.setError(s.putErrors, collection, err)
}

// FailGets makes every read of a single document in collection fail with err.
func (s *FaultInjectingStore) FailGets(collection string, err error) {
	s.setError(s.getErrors, collection, err)
}

// FailFinds makes every selector query on collection fail with err.
func (s *FaultInjectingStore) FailFinds(collection string, err error) {
	s.setError(s.findErrors, collection, err)
}

// OnPut registers a hook that runs before every write.
func (s *FaultInjectingStore) OnPut(hook PutHook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putHooks = append(s.putHooks, hook)
}

// OnFind registers a hook that runs after every successful selector query, before its result
// reaches the caller.
func (s *FaultInjectingStore) OnFind(hook FindHook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findHooks = append(s.findHooks, hook)
}

// InjectedConflicts returns how many conflicts were handed out.
func (s *FaultInjectingStore) InjectedConflicts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.injectedConflicts
}

// PutCalls returns how many writes to collection reached the wrapper, failed ones included.
func (s *FaultInjectingStore) PutCalls(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putCalls[collection]
}

// ReplicaReads returns how many reads of collection allowed a replica to answer.
func (s *FaultInjectingStore) ReplicaReads(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replicaReads[collection]
}

func (s *FaultInjectingStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.countRead(ctx, collection)

	if err := s.errorFor(s.getErrors, collection); err != nil {
		return docstore.Document{}, err
	}

	return s.Store.Get(ctx, collection, id)
}

func (s *FaultInjectingStore) Find(ctx context.Context, collection string, selector docstore.Selector) ([]docstore.Document, error) {
	s.countRead(ctx, collection)

	if err := s.errorFor(s.findErrors, collection); err != nil {
		return nil, err
	}

	docs, err := s.Store.Find(ctx, collection, selector)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	hooks := append([]FindHook(nil), s.findHooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx, collection)
	}

	return docs, nil
}

func (s *FaultInjectingStore) Put(
	ctx context.Context,
	collection, id string,
	body []byte,
	expect docstore.Expectation,
) (docstore.Revision, error) {
	s.mu.Lock()
	s.putCalls[collection]++
	hooks := append([]PutHook(nil), s.putHooks...)

	if s.pendingConflicts[collection] > 0 {
		s.pendingConflicts[collection]--
		s.injectedConflicts++
		s.mu.Unlock()

		return 0, docstore.ErrConcurrencyConflict
	}

	putErr := s.putErrors[collection]
	s.mu.Unlock()

	if putErr != nil {
		return 0, putErr
	}

	for _, hook := range hooks {
		if err := hook(ctx, collection, id); err != nil {
			return 0, err
		}
	}

	return s.Store.Put(ctx, collection, id, body, expect)
}

func (s *FaultInjectingStore) countRead(ctx context.Context, collection string) {
	if docstore.GetReadPreference(ctx) != docstore.ReadReplica {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.replicaReads[collection]++
}

func (s *FaultInjectingStore) setError(target map[string]error, collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(target, collection)
		return
	}

	target[collection] = err
}

func (s *FaultInjectingStore) errorFor(source map[string]error, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return source[collection]
}

var _ docstore.Store = (*FaultInjectingStore)(nil)
