package memengine_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/docstore/memengine"
	"github.com/AntonStoeckl/library-lending-go/testutil/testdoubles"
)

func newStore(t *testing.T, options ...memengine.Option) *memengine.Store {
	t.Helper()

	store, err := memengine.NewStore(options...)
	require.NoError(t, err)

	return store
}

func Test_Store_Get_NotFound(t *testing.T) {
	// arrange
	store := newStore(t)

	// act
	_, err := store.Get(context.Background(), "books", "missing")

	// assert
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func Test_Store_Put_RevisionLifecycle(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := newStore(t)

	// act
	rev1, err1 := store.Put(ctx, "books", "b1", []byte(`{"title":"Optics"}`), docstore.ExpectAbsent())
	rev2, err2 := store.Put(ctx, "books", "b1", []byte(`{"title":"Optics II"}`), docstore.ExpectRevision(rev1))
	_, staleErr := store.Put(ctx, "books", "b1", []byte(`{"title":"stale"}`), docstore.ExpectRevision(rev1))
	_, absentErr := store.Put(ctx, "books", "b1", []byte(`{"title":"dup"}`), docstore.ExpectAbsent())
	rev3, anyErr := store.Put(ctx, "books", "b1", []byte(`{"title":"forced"}`), docstore.ExpectAny())
	doc, getErr := store.Get(ctx, "books", "b1")

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, anyErr)
	require.NoError(t, getErr)
	assert.Equal(t, docstore.Revision(1), rev1)
	assert.Equal(t, docstore.Revision(2), rev2)
	assert.Equal(t, docstore.Revision(3), rev3)
	assert.ErrorIs(t, staleErr, docstore.ErrConcurrencyConflict)
	assert.ErrorIs(t, absentErr, docstore.ErrConcurrencyConflict)
	assert.Equal(t, docstore.Revision(3), doc.Revision)
	assert.JSONEq(t, `{"title":"forced"}`, string(doc.Body))
}

func Test_Store_Put_ExpectRevisionOnMissingDocumentConflicts(t *testing.T) {
	// arrange
	store := newStore(t)

	// act
	_, err := store.Put(context.Background(), "books", "ghost", []byte(`{}`), docstore.ExpectRevision(1))

	// assert
	assert.ErrorIs(t, err, docstore.ErrConcurrencyConflict)
}

func Test_Store_Put_RejectsInvalidInput(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := newStore(t)

	// act + assert
	_, err := store.Put(ctx, "", "id", []byte(`{}`), docstore.ExpectAny())
	assert.ErrorIs(t, err, docstore.ErrEmptyCollectionName)

	_, err = store.Put(ctx, "books", "", []byte(`{}`), docstore.ExpectAny())
	assert.ErrorIs(t, err, docstore.ErrEmptyDocumentID)

	_, err = store.Put(ctx, "books", "b1", []byte(`"scalar"`), docstore.ExpectAny())
	assert.ErrorIs(t, err, docstore.ErrInvalidDocumentJSON)
}

func Test_Store_Get_ReturnsACopy(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := newStore(t)
	_, err := store.Put(ctx, "books", "b1", []byte(`{"title":"Optics"}`), docstore.ExpectAbsent())
	require.NoError(t, err)

	// act
	doc, _ := store.Get(ctx, "books", "b1")
	doc.Body[2] = 'X'
	again, _ := store.Get(ctx, "books", "b1")

	// assert
	assert.JSONEq(t, `{"title":"Optics"}`, string(again.Body))
}

func Test_Store_Find_OrdersByIDAndFilters(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := newStore(t)
	for _, id := range []string{"b3", "b1", "b2"} {
		_, err := store.Put(ctx, "books", id, []byte(fmt.Sprintf(`{"subject":"Physics","id":%q}`, id)), docstore.ExpectAbsent())
		require.NoError(t, err)
	}
	_, err := store.Put(ctx, "books", "b0", []byte(`{"subject":"Maths"}`), docstore.ExpectAbsent())
	require.NoError(t, err)

	// act
	docs, err := store.Find(ctx, "books", docstore.Select().Eq("subject", "Physics"))

	// assert
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"b1", "b2", "b3"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}

func Test_Store_Find_UnknownCollectionIsEmpty(t *testing.T) {
	// arrange
	store := newStore(t)

	// act
	docs, err := store.Find(context.Background(), "nothing", docstore.Select())

	// assert
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func Test_Store_Create_UsesGenerator(t *testing.T) {
	// arrange
	store := newStore(t, memengine.WithIDGenerator(func() string { return "fixed" }))

	// act
	id, rev, err := store.Create(context.Background(), "loans", []byte(`{}`))
	_, _, dupErr := store.Create(context.Background(), "loans", []byte(`{}`))

	// assert
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
	assert.Equal(t, docstore.Revision(1), rev)
	assert.ErrorIs(t, dupErr, docstore.ErrConcurrencyConflict)
	assert.Equal(t, 1, store.Len("loans"))
}

func Test_Store_CanceledContext(t *testing.T) {
	// arrange
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, err := store.Get(ctx, "books", "b1")

	// assert
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_Store_ConcurrentConditionalWrites_ExactlyOneWins(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := newStore(t)
	rev, err := store.Put(ctx, "books", "b1", []byte(`{"available_copies":1}`), docstore.ExpectAbsent())
	require.NoError(t, err)

	var wins atomic.Int32
	var conflicts atomic.Int32
	var wg sync.WaitGroup

	// act
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, putErr := store.Put(ctx, "books", "b1", []byte(`{"available_copies":0}`), docstore.ExpectRevision(rev))
			if putErr == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, putErr, docstore.ErrConcurrencyConflict)
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(19), conflicts.Load())
}

func Test_Store_Observability(t *testing.T) {
	// arrange
	metrics := testdoubles.NewMetricsCollectorSpy()
	store := newStore(t, memengine.WithMetrics(metrics))

	// act
	_, _ = store.Get(context.Background(), "books", "missing")

	// assert
	assert.True(t, metrics.HasCounterRecordForMetric(docstore.MetricOperations).
		WithLabel(docstore.AttrEngine, "memory").
		WithStatus(docstore.StatusNotFound).
		Assert())
}
