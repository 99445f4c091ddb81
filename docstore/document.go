package docstore

import (
	"context"
	"fmt"
)

// Revision is the version token of a stored document. Zero means the document does not exist.
type Revision uint64

// Document is one stored document as returned by an engine.
type Document struct {
	ID       string
	Revision Revision
	Body     []byte
}

// Store is implemented by every storage engine.
//
// Find returns the matching documents ordered by ascending id in every engine,
// so callers that pick "the first match" get the same answer regardless of the backend.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, body []byte, expect Expectation) (Revision, error)
	Find(ctx context.Context, collection string, selector Selector) ([]Document, error)
	Create(ctx context.Context, collection string, body []byte) (string, Revision, error)
}

type expectationKind int

const (
	expectRevision expectationKind = iota
	expectAbsent
	expectAny
)

// Expectation is the precondition of a write.
type Expectation struct {
	kind     expectationKind
	revision Revision
}

// ExpectRevision makes a write succeed only if the stored document still has the given revision.
func ExpectRevision(revision Revision) Expectation {
	return Expectation{kind: expectRevision, revision: revision}
}

// ExpectAbsent makes a write succeed only if no document exists under the key.
func ExpectAbsent() Expectation {
	return Expectation{kind: expectAbsent}
}

// ExpectAny makes a write unconditional.
func ExpectAny() Expectation {
	return Expectation{kind: expectAny}
}

// Revision returns the expected revision and whether the expectation is revision-conditioned.
func (e Expectation) Revision() (Revision, bool) {
	return e.revision, e.kind == expectRevision
}

// IsAbsent reports whether the write requires the document to be missing.
func (e Expectation) IsAbsent() bool {
	return e.kind == expectAbsent
}

// IsAny reports whether the write is unconditional.
func (e Expectation) IsAny() bool {
	return e.kind == expectAny
}

// Holds evaluates the expectation against the current state of a key.
// Engines without native conditional writes use it inside their own atomic section.
func (e Expectation) Holds(current Revision, exists bool) bool {
	switch e.kind {
	case expectAbsent:
		return !exists
	case expectAny:
		return true
	default:
		return exists && current == e.revision
	}
}

func (e Expectation) String() string {
	switch e.kind {
	case expectAbsent:
		return "absent"
	case expectAny:
		return "any"
	default:
		return fmt.Sprintf("revision=%d", e.revision)
	}
}
