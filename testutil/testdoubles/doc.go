// Package testdoubles provides spies for the observability interfaces of the docstore package,
// plus a store wrapper that injects conflicts and failures.
//
// The doubles record every call behind a mutex so that tests can exercise concurrent code paths
// and then assert on the captured metrics, spans, and log lines.
package testdoubles
