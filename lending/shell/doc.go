// Package shell contains the infrastructure glue of the lending components:
// optimistic-concurrency retries, revision-conditioned document updates, the
// translation of store errors into lending failures, and observability helpers.
//
// In Hexagonal Architecture terminology, this would be the 'adapters' layer
// shared by inventory, accounts, loans and the engine.
package shell
