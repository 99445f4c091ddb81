// Package pgtest runs the PostgreSQL document store tests against pgx, database/sql or sqlx.
//
// The adapter is chosen by ADAPTER_TYPE (pgx.pool, sql.db, sqlx.db; default pgx.pool) and the
// database by LENDING_TEST_POSTGRES_DSN. Without a DSN the tests are skipped.
//
//	store := pgtest.CreateWrapper(t).Store()
//
// The table is dropped and the connection closed when the test finishes.
package pgtest

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/docstore/postgresengine"
)

const (
	// EnvDSN names the environment variable holding the test database DSN.
	EnvDSN = "LENDING_TEST_POSTGRES_DSN"

	// EnvAdapterType names the environment variable selecting the database adapter.
	EnvAdapterType = "ADAPTER_TYPE"

	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"

	defaultMaxConnections  = 10
	defaultConnMaxLifetime = time.Minute * 5
)

// Wrapper abstracts over the supported connection types.
type Wrapper interface {
	Store() *postgresengine.Store
	Close()
}

type pgxPoolWrapper struct {
	pool  *pgxpool.Pool
	store *postgresengine.Store
}

func (w *pgxPoolWrapper) Store() *postgresengine.Store { return w.store }
func (w *pgxPoolWrapper) Close()                       { w.pool.Close() }

type sqlDBWrapper struct {
	db    *sql.DB
	store *postgresengine.Store
}

func (w *sqlDBWrapper) Store() *postgresengine.Store { return w.store }
func (w *sqlDBWrapper) Close()                       { _ = w.db.Close() }

type sqlxWrapper struct {
	db    *sqlx.DB
	store *postgresengine.Store
}

func (w *sqlxWrapper) Store() *postgresengine.Store { return w.store }
func (w *sqlxWrapper) Close()                       { _ = w.db.Close() }

// DSN returns the test database DSN or skips the test if none is configured.
func DSN(t testing.TB) string {
	t.Helper()

	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping PostgreSQL test", EnvDSN)
	}

	return dsn
}

// CreateWrapper connects with the adapter named by ADAPTER_TYPE and returns a Store on a fresh,
// uniquely named table whose schema is already in place.
func CreateWrapper(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	dsn := DSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	options = append([]postgresengine.Option{postgresengine.WithTableName(UniqueTableName())}, options...)

	var wrapper Wrapper

	switch strings.ToLower(os.Getenv(EnvAdapterType)) {
	case typePGXPool, "":
		cfg, err := pgxpool.ParseConfig(dsn)
		require.NoError(t, err, "parsing pgx pool config")
		cfg.MaxConns = defaultMaxConnections
		cfg.MaxConnLifetime = defaultConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		require.NoError(t, err, "connecting pgx pool")

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "creating store")
		wrapper = &pgxPoolWrapper{pool: pool, store: store}

	case typeSQLDB:
		db, err := sql.Open("postgres", dsn)
		require.NoError(t, err, "opening sql.DB")
		db.SetMaxOpenConns(defaultMaxConnections)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "creating store")
		wrapper = &sqlDBWrapper{db: db, store: store}

	case typeSQLXDB:
		db, err := sqlx.Connect("postgres", dsn)
		require.NoError(t, err, "connecting sqlx.DB")
		db.SetMaxOpenConns(defaultMaxConnections)
		db.SetConnMaxLifetime(defaultConnMaxLifetime)

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "creating store")
		wrapper = &sqlxWrapper{db: db, store: store}

	default:
		panic("unsupported " + EnvAdapterType + ": " + os.Getenv(EnvAdapterType))
	}

	require.NoError(t, wrapper.Store().EnsureSchema(ctx), "creating schema")

	t.Cleanup(func() {
		dropTable(wrapper)
		wrapper.Close()
	})

	return wrapper
}

// UniqueTableName returns a table name that does not collide between parallel test runs.
func UniqueTableName() string {
	return "documents_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func dropTable(wrapper Wrapper) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stmt := "DROP TABLE IF EXISTS " + wrapper.Store().TableName()

	switch w := wrapper.(type) {
	case *pgxPoolWrapper:
		_, _ = w.pool.Exec(ctx, stmt)
	case *sqlDBWrapper:
		_, _ = w.db.ExecContext(ctx, stmt)
	case *sqlxWrapper:
		_, _ = w.db.ExecContext(ctx, stmt)
	}
}
