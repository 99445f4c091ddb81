// Package postgresengine provides a PostgreSQL implementation of docstore.Store.
//
// All collections share one table with the primary key (collection, id). Bodies are JSONB,
// so equality predicates become containment checks that a GIN index serves.
// Conditional writes are single statements:
//
//   - ExpectAbsent:   INSERT ... ON CONFLICT DO NOTHING RETURNING revision
//   - ExpectRevision: UPDATE ... WHERE revision = $n RETURNING revision
//   - ExpectAny:      INSERT ... ON CONFLICT (collection, id) DO UPDATE ... RETURNING revision
//
// An empty RETURNING set means the condition did not hold and is reported as
// docstore.ErrConcurrencyConflict.
//
// The Store can run on pgxpool.Pool (optionally with a read replica), database/sql with lib/pq,
// or sqlx:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	store, err := postgresengine.NewStoreFromPGXPool(pool, postgresengine.WithTableName("documents"))
//	if err != nil { ... }
//	if err := store.EnsureSchema(ctx); err != nil { ... }
package postgresengine
