// Package core contains the pure domain of the library-lending service:
// books with copy counts, students with borrow limits, and loans.
//
// Nothing in here touches storage. The types mirror the persisted documents, the
// Decide functions turn the current state of one aggregate into a DecisionResult,
// and the Failure values form the error taxonomy that the engine reports to callers.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'domain' layer.
package core
