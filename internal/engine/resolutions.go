package engine

import (
	"sync"
	"time"

	"github.com/klugworks/klugstore/internal/domain"
)

// pendingResolution is a suspended chunk: the descriptor shown to the
// contributor plus everything needed to finish the write once they
// decide. The embedding is kept so a Replace, which stores the candidate
// text unchanged, does not pay for a second embedding call.
type pendingResolution struct {
	Descriptor domain.ConflictDescriptor
	Candidate  string
	Embedding  []float32
	Author     string
	Source     domain.Source
	SourceURL  string
	Tags       []string
	Metadata   map[string]string
	ExpiresAt  time.Time
}

// resolutionRegistry holds suspended chunks keyed by resolution id.
// Entries expire after the TTL; an expired id resolves like an unknown
// one. In-memory on purpose: a pending conflict is a conversation, not a
// durable fact, and losing it on restart only costs a re-ingest.
type resolutionRegistry struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]*pendingResolution
}

func newResolutionRegistry(ttl time.Duration) *resolutionRegistry {
	return &resolutionRegistry{
		ttl: ttl,
		m:   make(map[string]*pendingResolution),
	}
}

func (r *resolutionRegistry) put(p *pendingResolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictExpiredLocked(time.Now())
	p.ExpiresAt = time.Now().Add(r.ttl)
	r.m[p.Descriptor.ResolutionID] = p
}

// take removes and returns the pending resolution, or nil when the id is
// unknown or expired. Removal is atomic with lookup so two concurrent
// resolves of the same id cannot both win.
func (r *resolutionRegistry) take(id string) *pendingResolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.m[id]
	if !ok {
		return nil
	}
	delete(r.m, id)
	if time.Now().After(p.ExpiresAt) {
		return nil
	}
	return p
}

func (r *resolutionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

func (r *resolutionRegistry) evictExpiredLocked(now time.Time) {
	for id, p := range r.m {
		if now.After(p.ExpiresAt) {
			delete(r.m, id)
		}
	}
}
