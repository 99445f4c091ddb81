// Package docstore provides the core abstractions of a revisioned document store.
//
// Documents live in named collections, are keyed by a string id and carry a JSON body.
// Every write bumps the document's Revision, and writes can be made conditional on the
// revision the caller has read before (optimistic concurrency). A lost race is reported
// as ErrConcurrencyConflict and is the only error a caller should retry.
//
// Key types:
//   - Store: the interface implemented by the engines (memengine, postgresengine, redisengine)
//   - Document: id, revision and raw JSON body
//   - Expectation: the precondition of a conditional write
//   - Selector: conjunction of predicates over top-level JSON fields
//
// Common usage pattern:
//
//	doc, err := store.Get(ctx, "books", bookID)
//	if err != nil {
//		// handle error
//	}
//
//	book, err := docstore.Decode[Book](doc)
//	book.AvailableCopies--
//
//	body, _ := docstore.Encode(book)
//	_, err = store.Put(ctx, "books", bookID, body, docstore.ExpectRevision(doc.Revision))
//	if errors.Is(err, docstore.ErrConcurrencyConflict) {
//		// re-read and try again
//	}
package docstore
