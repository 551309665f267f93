package source

import "context"

// RawRecord is what a page fetch yields, already reduced to the shape the
// machine needs regardless of which family produced it: Index is the score
// the store gateway returned (sequenceNr for by-id, tag-local index for
// by-tag); SequenceNr/PersistenceID/Payload/Deleted describe the underlying
// persisted event.
type RawRecord struct {
	Index         uint64
	PersistenceID string
	SequenceNr    uint64
	Payload       []byte
	Deleted       bool
}

// Driver specializes the shared FSM skeleton for one source family. Page
// fetching, decoding, and (for by-tag) the secondary point read all happen
// behind FetchPage; the machine only needs a uniform RawRecord back.
type Driver interface {
	// FetchPage returns the records whose index lies in [lo, hi], ascending.
	FetchPage(ctx context.Context, lo, hi uint64) ([]RawRecord, error)

	// Channel names the pub/sub channel to subscribe to for live queries.
	Channel() string
}
