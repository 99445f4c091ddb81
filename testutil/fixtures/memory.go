package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/docstore/memengine"
	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

// NewMemoryStore returns an in-memory store seeded with set under the default collection names.
func NewMemoryStore(t testing.TB, set Set, options ...memengine.Option) *memengine.Store {
	t.Helper()

	store, err := memengine.NewStore(options...)
	require.NoError(t, err, "creating the memory store should not fail")
	require.NoError(t, set.Seed(context.Background(), store, core.DefaultCollections()), "seeding should not fail")

	return store
}
