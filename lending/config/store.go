package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/library-lending-go/docstore"
	"github.com/AntonStoeckl/library-lending-go/docstore/memengine"
	"github.com/AntonStoeckl/library-lending-go/docstore/postgresengine"
	"github.com/AntonStoeckl/library-lending-go/docstore/redisengine"
)

// StoreInstrumentation is handed to whichever store engine is opened. Nil fields are skipped.
type StoreInstrumentation struct {
	Logger           docstore.Logger
	ContextualLogger docstore.ContextualLogger
	Metrics          docstore.MetricsCollector
	Tracing          docstore.TracingCollector
}

// Backend is an opened document store together with its connection.
type Backend struct {
	Store docstore.Store

	engine  string
	migrate func(ctx context.Context) error
	close   func()
}

// Engine names the store engine behind the backend.
func (b *Backend) Engine() string {
	return b.engine
}

// Migrate creates the schema of engines that need one. It is a no-op for memory and redis.
func (b *Backend) Migrate(ctx context.Context) error {
	if b.migrate == nil {
		return nil
	}

	return b.migrate(ctx)
}

// Close releases the connection of the backend.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenStore connects to the engine named by cfg.Engine.
func OpenStore(ctx context.Context, cfg StoreConfig, inst StoreInstrumentation) (*Backend, error) {
	var (
		backend *Backend
		err     error
	)

	switch cfg.Engine {
	case EngineMemory, "":
		backend, err = openMemory(inst)
	case EnginePostgresPGX:
		backend, err = openPGX(ctx, cfg.Postgres, inst)
	case EnginePostgresSQL:
		backend, err = openSQLDB(ctx, cfg.Postgres, inst)
	case EnginePostgresSQLX:
		backend, err = openSQLX(ctx, cfg.Postgres, inst)
	case EngineRedis:
		backend, err = openRedis(ctx, cfg.Redis, inst)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, cfg.Engine)
	}

	if err != nil {
		return nil, errors.Join(ErrOpeningStoreFailed, err)
	}

	return backend, nil
}

func openMemory(inst StoreInstrumentation) (*Backend, error) {
	store, err := memengine.NewStore(memoryOptions(inst)...)
	if err != nil {
		return nil, err
	}

	return &Backend{Store: store, engine: EngineMemory}, nil
}

// PGXPoolConfig turns the pool settings into a pgxpool.Config.
func PGXPoolConfig(dsn string, cfg PostgresConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	return poolConfig, nil
}

func openPGX(ctx context.Context, cfg PostgresConfig, inst StoreInstrumentation) (*Backend, error) {
	primary, err := connectPGX(ctx, cfg.DSN, cfg)
	if err != nil {
		return nil, err
	}

	var replica *pgxpool.Pool
	if cfg.ReplicaDSN != "" {
		if replica, err = connectPGX(ctx, cfg.ReplicaDSN, cfg); err != nil {
			primary.Close()
			return nil, err
		}
	}

	store, err := postgresengine.NewStoreFromPGXPoolAndReplica(primary, replica, postgresOptions(cfg, inst)...)
	if err != nil {
		primary.Close()
		if replica != nil {
			replica.Close()
		}

		return nil, err
	}

	return &Backend{
		Store:   store,
		engine:  EnginePostgresPGX,
		migrate: store.EnsureSchema,
		close: func() {
			primary.Close()
			if replica != nil {
				replica.Close()
			}
		},
	}, nil
}

func connectPGX(ctx context.Context, dsn string, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := PGXPoolConfig(dsn, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func openSQLDB(ctx context.Context, cfg PostgresConfig, inst StoreInstrumentation) (*Backend, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	configureSQLPool(db, cfg)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := postgresengine.NewStoreFromSQLDB(db, postgresOptions(cfg, inst)...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Backend{
		Store:   store,
		engine:  EnginePostgresSQL,
		migrate: store.EnsureSchema,
		close:   func() { _ = db.Close() },
	}, nil
}

func openSQLX(ctx context.Context, cfg PostgresConfig, inst StoreInstrumentation) (*Backend, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	configureSQLPool(db.DB, cfg)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := postgresengine.NewStoreFromSQLX(db, postgresOptions(cfg, inst)...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Backend{
		Store:   store,
		engine:  EnginePostgresSQLX,
		migrate: store.EnsureSchema,
		close:   func() { _ = db.Close() },
	}, nil
}

// configureSQLPool maps the pool settings onto database/sql. MinConns becomes the idle limit.
func configureSQLPool(db *sql.DB, cfg PostgresConfig) {
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
}

func openRedis(ctx context.Context, cfg RedisConfig, inst StoreInstrumentation) (*Backend, error) {
	options, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	store, err := redisengine.NewStore(client, redisOptions(cfg, inst)...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Backend{
		Store:  store,
		engine: EngineRedis,
		close:  func() { _ = client.Close() },
	}, nil
}

func memoryOptions(inst StoreInstrumentation) []memengine.Option {
	var options []memengine.Option

	if inst.Logger != nil {
		options = append(options, memengine.WithLogger(inst.Logger))
	}
	if inst.ContextualLogger != nil {
		options = append(options, memengine.WithContextualLogger(inst.ContextualLogger))
	}
	if inst.Metrics != nil {
		options = append(options, memengine.WithMetrics(inst.Metrics))
	}
	if inst.Tracing != nil {
		options = append(options, memengine.WithTracing(inst.Tracing))
	}

	return options
}

func postgresOptions(cfg PostgresConfig, inst StoreInstrumentation) []postgresengine.Option {
	var options []postgresengine.Option

	if cfg.Table != "" {
		options = append(options, postgresengine.WithTableName(cfg.Table))
	}
	if inst.Logger != nil {
		options = append(options, postgresengine.WithLogger(inst.Logger))
	}
	if inst.ContextualLogger != nil {
		options = append(options, postgresengine.WithContextualLogger(inst.ContextualLogger))
	}
	if inst.Metrics != nil {
		options = append(options, postgresengine.WithMetrics(inst.Metrics))
	}
	if inst.Tracing != nil {
		options = append(options, postgresengine.WithTracing(inst.Tracing))
	}

	return options
}

func redisOptions(cfg RedisConfig, inst StoreInstrumentation) []redisengine.Option {
	var options []redisengine.Option

	if cfg.KeyPrefix != "" {
		options = append(options, redisengine.WithKeyPrefix(cfg.KeyPrefix))
	}
	if inst.Logger != nil {
		options = append(options, redisengine.WithLogger(inst.Logger))
	}
	if inst.ContextualLogger != nil {
		options = append(options, redisengine.WithContextualLogger(inst.ContextualLogger))
	}
	if inst.Metrics != nil {
		options = append(options, redisengine.WithMetrics(inst.Metrics))
	}
	if inst.Tracing != nil {
		options = append(options, redisengine.WithTracing(inst.Tracing))
	}

	return options
}
