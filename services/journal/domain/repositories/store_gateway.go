// Package repositories holds the interfaces the domain layer owns and the
// infrastructure layer implements: the store gateway, the record serializer,
// and the key/channel naming scheme. None of these are specified by the core
// — they are the external collaborators the sources are built against.
package repositories

import (
	"context"

	"github.com/ghuser/persistredis/services/journal/domain/models"
)

// ScoredValue is one row of a sorted-set range read.
type ScoredValue struct {
	Score uint64
	Value []byte
}

// Subscription is a live handle on a pub/sub channel. Messages delivers
// payloads until Close is called or the underlying connection is lost, at
// which point the channel is closed.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

// StoreGateway wraps paged range reads on sorted sets and pub/sub
// subscriptions. This is the only thing the sources talk to the store through.
type StoreGateway interface {
	// Range returns the values whose score lies in the closed interval
	// [lo, hi], ascending by score. An empty result is not an error.
	Range(ctx context.Context, key string, lo, hi uint64) ([]ScoredValue, error)

	// Subscribe opens a pub/sub subscription on channel. The returned
	// Subscription must be closed by the caller when no longer needed.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Serializer decodes a raw per-identifier sorted-set value into a persistent
// record. Must be deterministic and total over the write-side output; a
// shape it cannot parse is a DecodeError, not a panic.
type Serializer interface {
	DecodeRecord(raw []byte) (models.PersistentRecord, error)
}

// KeyScheme names the sorted sets and channels the core reads from. The
// naming convention itself is an external collaborator concern, same as
// event serialization — this interface is how the sources stay agnostic to it.
type KeyScheme interface {
	PersistenceIDKey(persistenceID string) string
	PersistenceIDChannel(persistenceID string) string
	TagKey(tag string) string
	TagChannel(tag string) string
}
