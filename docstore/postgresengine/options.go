package postgresengine

import (
	"regexp"

	"github.com/AntonStoeckl/library-lending-go/docstore"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithTableName sets the table name for the Store.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return docstore.ErrEmptyTableName
		}

		if !tableNamePattern.MatchString(tableName) {
			return docstore.ErrInvalidTableName
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements and per-operation timing
// Info level: Concurrency conflicts
// Error level: Failures that cause an operation to fail.
func WithLogger(logger docstore.Logger) Option {
	return func(s *Store) error {
		s.inst.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// A contextual logger receives the operation's context, so trace and span ids can be correlated.
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
