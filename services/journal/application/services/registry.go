package services

import (
	"sync"
	"time"

	"github.com/ghuser/persistredis/services/journal/domain/source"
)

// SourceInfo is a snapshot-friendly view of one active source, for the
// admin introspection endpoint: operators need to see which live queries
// are parked versus actively querying, not just that they exist.
type SourceInfo struct {
	ID         string
	Kind       string // "by-persistence-id" or "by-tag"
	Descriptor string // the persistence identifier or tag
	Live       bool
	CreatedAt  time.Time

	stateFn func() source.State
}

// State returns the source's current FSM state.
func (i SourceInfo) State() string {
	return i.stateFn().String()
}

// Registry tracks every currently-alive source for introspection.
type Registry struct {
	mu      sync.Mutex
	sources map[string]*SourceInfo
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*SourceInfo)}
}

// register adds info and returns a function that removes it again.
func (r *Registry) register(info *SourceInfo) func() {
	info.CreatedAt = time.Now().UTC()
	r.mu.Lock()
	r.sources[info.ID] = info
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.sources, info.ID)
		r.mu.Unlock()
	}
}

// List returns a snapshot of every currently-registered source.
func (r *Registry) List() []SourceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SourceInfo, 0, len(r.sources))
	for _, info := range r.sources {
		out = append(out, *info)
	}
	return out
}
