package docstore

import "context"

// ReadPreference tells an engine where a read may be served from.
type ReadPreference int

const (
	// ReadPrimary serves reads from the primary so that a read-modify-write cycle sees its own writes.
	// This is the default.
	ReadPrimary ReadPreference = iota

	// ReadReplica allows a replica to serve the read. Only for reads that never feed a conditional write.
	ReadReplica
)

type contextKey string

// ReadPreferenceKey is the context key under which the read preference is stored.
const ReadPreferenceKey contextKey = "docstore.read_preference"

// WithReadPrimary returns a context whose reads must hit the primary.
func WithReadPrimary(ctx context.Context) context.Context {
	return context.WithValue(ctx, ReadPreferenceKey, ReadPrimary)
}

// WithReadReplica returns a context whose reads may be served by a replica.
//
//	ctx = docstore.WithReadReplica(ctx)
//	books, err := store.Find(ctx, "books", docstore.Select().Eq("subject", subject))
func WithReadReplica(ctx context.Context) context.Context {
	return context.WithValue(ctx, ReadPreferenceKey, ReadReplica)
}

// GetReadPreference extracts the read preference from the context, defaulting to ReadPrimary.
func GetReadPreference(ctx context.Context) ReadPreference {
	if p, ok := ctx.Value(ReadPreferenceKey).(ReadPreference); ok {
		return p
	}

	return ReadPrimary
}

func (p ReadPreference) String() string {
	switch p {
	case ReadPrimary:
		return "primary"
	case ReadReplica:
		return "replica"
	default:
		return "unknown"
	}
}
