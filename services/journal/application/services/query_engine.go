// Package services wires the source state machine into the four core-facing
// operations and tracks which ones are currently alive for introspection.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ghuser/persistredis/pkg/logger"
	"github.com/ghuser/persistredis/pkg/metrics"
	"github.com/ghuser/persistredis/services/journal/domain/models"
	"github.com/ghuser/persistredis/services/journal/domain/repositories"
	"github.com/ghuser/persistredis/services/journal/domain/source"
)

// Source is the demand-driven, backpressured sequence every query returns:
// pull one envelope at a time, release resources with Close when done.
type Source interface {
	Next(ctx context.Context) (models.Envelope, error)
	Close() error
}

// QueryEngine exposes the four core-facing operations over a store gateway.
type QueryEngine struct {
	gateway    repositories.StoreGateway
	keys       repositories.KeyScheme
	serializer repositories.Serializer
	pageSize   uint64
	metrics    *metrics.Journal
	log        logger.Logger
	registry   *Registry
}

// New returns a QueryEngine. pageSize bounds every range read and doubles as
// the soft bound on each source's internal buffer.
func New(
	gateway repositories.StoreGateway,
	keys repositories.KeyScheme,
	serializer repositories.Serializer,
	pageSize uint64,
	m *metrics.Journal,
	log logger.Logger,
) *QueryEngine {
	return &QueryEngine{
		gateway:    gateway,
		keys:       keys,
		serializer: serializer,
		pageSize:   pageSize,
		metrics:    m,
		log:        log,
		registry:   NewRegistry(),
	}
}

// Registry returns the active-source registry backing the admin
// introspection endpoint.
func (e *QueryEngine) Registry() *Registry {
	return e.registry
}

// CurrentEventsByPersistenceId returns the finite, snapshot-at-exhaustion
// sequence of events for persistenceID in [fromSeq, toSeq].
func (e *QueryEngine) CurrentEventsByPersistenceId(ctx context.Context, persistenceID string, fromSeq, toSeq uint64) (Source, error) {
	return e.byPersistenceID(ctx, persistenceID, fromSeq, toSeq, false)
}

// EventsByPersistenceId returns the unbounded, follow-the-tail sequence of
// events for persistenceID starting at fromSeq.
func (e *QueryEngine) EventsByPersistenceId(ctx context.Context, persistenceID string, fromSeq, toSeq uint64) (Source, error) {
	return e.byPersistenceID(ctx, persistenceID, fromSeq, toSeq, true)
}

// CurrentEventsByTag returns the finite, snapshot-at-exhaustion sequence of
// events carrying tag, starting at offset.
func (e *QueryEngine) CurrentEventsByTag(ctx context.Context, tag string, offset models.Offset) (Source, error) {
	return e.byTag(ctx, tag, offset, false)
}

// EventsByTag returns the unbounded, follow-the-tail sequence of events
// carrying tag, starting at offset.
func (e *QueryEngine) EventsByTag(ctx context.Context, tag string, offset models.Offset) (Source, error) {
	return e.byTag(ctx, tag, offset, true)
}

func (e *QueryEngine) byPersistenceID(ctx context.Context, persistenceID string, fromSeq, toSeq uint64, live bool) (Source, error) {
	m, err := source.NewByPersistenceIDSource(ctx, e.gateway, e.keys, e.serializer, persistenceID, fromSeq, toSeq, live, e.pageSize, e.metrics, e.log)
	if err != nil {
		return nil, fmt.Errorf("current/events by persistence id %s: %w", persistenceID, err)
	}
	deregister := e.registry.register(&SourceInfo{
		ID:         uuid.NewString(),
		Kind:       "by-persistence-id",
		Descriptor: persistenceID,
		Live:       live,
		stateFn:    m.State,
	})
	return &registeredSource{Machine: m, deregister: deregister}, nil
}

func (e *QueryEngine) byTag(ctx context.Context, tag string, offset models.Offset, live bool) (Source, error) {
	m, err := source.NewByTagSource(ctx, e.gateway, e.keys, e.serializer, tag, offset, live, e.pageSize, e.metrics, e.log)
	if err != nil {
		return nil, fmt.Errorf("current/events by tag %s: %w", tag, err)
	}
	deregister := e.registry.register(&SourceInfo{
		ID:         uuid.NewString(),
		Kind:       "by-tag",
		Descriptor: tag,
		Live:       live,
		stateFn:    m.State,
	})
	return &registeredSource{Machine: m, deregister: deregister}, nil
}

// registeredSource wraps a *source.Machine so Close also deregisters it from
// the admin introspection registry.
type registeredSource struct {
	*source.Machine
	deregister func()
}

func (r *registeredSource) Close() error {
	r.deregister()
	return r.Machine.Close()
}
