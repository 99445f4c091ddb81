// Package config loads the settings of the lending service from a YAML file and LENDING_*
// environment variables, and builds the store, logger and intent classifier they describe.
//
// Environment variables override the file: store.postgres.dsn is read from
// LENDING_STORE_POSTGRES_DSN.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
)

// EnvPrefix is the prefix of every environment variable the configuration reads.
const EnvPrefix = "LENDING"

const (
	EngineMemory       = "memory"
	EnginePostgresPGX  = "postgres-pgx"
	EnginePostgresSQL  = "postgres-sql"
	EnginePostgresSQLX = "postgres-sqlx"
	EngineRedis        = "redis"

	MetricsPrometheus = "prometheus"
	MetricsOTel       = "otel"
	MetricsNone       = "none"

	LogFormatJSON = "json"
	LogFormatText = "text"
)

var (
	ErrReadingConfigFailed  = errors.New("reading config failed")
	ErrDecodingConfigFailed = errors.New("decoding config failed")
	ErrInvalidConfig        = errors.New("invalid config")
	ErrUnsupportedEngine    = errors.New("unsupported store engine")
	ErrUnsupportedLogFormat = errors.New("unsupported log format")
	ErrUnsupportedMetrics   = errors.New("unsupported metrics backend")
	ErrMissingPostgresDSN   = errors.New("store.postgres.dsn is required for postgres engines")
	ErrOpeningStoreFailed   = errors.New("opening store failed")
	ErrBuildingClassifier   = errors.New("building intent classifier failed")
)

// Config is the complete service configuration.
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Store         StoreConfig         `mapstructure:"store"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Intent        IntentConfig        `mapstructure:"intent"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the document store engine and holds the settings of each engine.
type StoreConfig struct {
	Engine   string         `mapstructure:"engine"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig configures the connection pool of the postgres engines. ReplicaDSN is only
// used by postgres-pgx.
type PostgresConfig struct {
	DSN               string        `mapstructure:"dsn"`
	ReplicaDSN        string        `mapstructure:"replica_dsn"`
	Table             string        `mapstructure:"table"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type EngineConfig struct {
	Collections          CollectionsConfig `mapstructure:"collections"`
	Retry                RetryConfig       `mapstructure:"retry"`
	ReconcileConcurrency int               `mapstructure:"reconcile_concurrency"`
	ReconcileGrace       time.Duration     `mapstructure:"reconcile_grace"`
}

type CollectionsConfig struct {
	Books    string `mapstructure:"books"`
	Loans    string `mapstructure:"loans"`
	Students string `mapstructure:"students"`
}

// RetryConfig bounds the retries of a conditional write that lost a concurrency race.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	JitterFactor float64       `mapstructure:"jitter_factor"`
}

// IntentConfig lists the classifier endpoints of /smart_route in the order they are tried.
// Without endpoints every free-text request is answered as not understood.
type IntentConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Model     string        `mapstructure:"model"`
	APIToken  string        `mapstructure:"api_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Metrics     string `mapstructure:"metrics"`
	Tracing     bool   `mapstructure:"tracing"`
	OTelLogs    bool   `mapstructure:"otel_logs"`
}

// Collections converts the configured collection names.
func (c CollectionsConfig) Collections() core.Collections {
	return core.Collections{Books: c.Books, Loans: c.Loans, Students: c.Students}
}

// SetDefaults registers the default of every setting. Only keys with a default are read from
// the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", LogFormatJSON)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.engine", EngineMemory)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.replica_dsn", "")
	v.SetDefault("store.postgres.table", "documents")
	v.SetDefault("store.postgres.max_conns", 50)
	v.SetDefault("store.postgres.min_conns", 2)
	v.SetDefault("store.postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("store.postgres.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("store.postgres.health_check_period", time.Minute)
	v.SetDefault("store.postgres.connect_timeout", 5*time.Second)
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")
	v.SetDefault("store.redis.key_prefix", "lending")

	v.SetDefault("engine.collections.books", core.BooksCollection)
	v.SetDefault("engine.collections.loans", core.LoansCollection)
	v.SetDefault("engine.collections.students", core.StudentsCollection)
	v.SetDefault("engine.retry.max_attempts", 5)
	v.SetDefault("engine.retry.base_delay", 10*time.Millisecond)
	v.SetDefault("engine.retry.jitter_factor", 0.3)
	v.SetDefault("engine.reconcile_concurrency", 4)
	v.SetDefault("engine.reconcile_grace", time.Minute)

	v.SetDefault("intent.endpoints", []string{})
	v.SetDefault("intent.model", "")
	v.SetDefault("intent.api_token", "")
	v.SetDefault("intent.timeout", 30*time.Second)

	v.SetDefault("observability.service_name", "lendingd")
	v.SetDefault("observability.metrics", MetricsPrometheus)
	v.SetDefault("observability.tracing", false)
	v.SetDefault("observability.otel_logs", false)
}

// NewViper returns a viper instance with defaults and environment binding in place.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	return v
}

// Load reads the configuration. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Join(ErrReadingConfigFailed, err)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper decodes and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Join(ErrDecodingConfigFailed, err)
	}

	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Store.Engine = strings.ToLower(strings.TrimSpace(cfg.Store.Engine))
	cfg.Observability.Metrics = strings.ToLower(strings.TrimSpace(cfg.Observability.Metrics))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch c.Store.Engine {
	case EngineMemory, EngineRedis:
	case EnginePostgresPGX, EnginePostgresSQL, EnginePostgresSQLX:
		if c.Store.Postgres.DSN == "" {
			return ErrMissingPostgresDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEngine, c.Store.Engine)
	}

	switch c.Log.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedLogFormat, c.Log.Format)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Observability.Metrics {
	case MetricsPrometheus, MetricsOTel, MetricsNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMetrics, c.Observability.Metrics)
	}

	if c.Engine.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%w: engine.retry.max_attempts must be positive", ErrInvalidConfig)
	}

	if c.Engine.ReconcileConcurrency <= 0 {
		return fmt.Errorf("%w: engine.reconcile_concurrency must be positive", ErrInvalidConfig)
	}

	if c.Engine.ReconcileGrace < 0 {
		return fmt.Errorf("%w: engine.reconcile_grace must not be negative", ErrInvalidConfig)
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr must not be empty", ErrInvalidConfig)
	}

	return nil
}
