// Package observable decorates a lending engine.Service with metrics, tracing and logging.
package observable
