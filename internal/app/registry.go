package app

import (
	"context"
	"log"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
	"github.com/google/uuid"
)

// RegistryHook mirrors session lifecycle into external infrastructure
// (e.g. Redis liveness markers). Calls are best effort.
type RegistryHook interface {
	SessionCreated(id string)
	SessionRemoved(id string)
}

// Registry owns the mapping from session id to live Session. Lookups and
// removals on different sessions never block each other; the map itself is
// the only shared state.
type Registry struct {
	ttl  time.Duration
	now  func() time.Time
	hook RegistryHook

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds a registry whose sessions expire ttl after creation.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetHook attaches a lifecycle hook. Must be called before the registry is shared.
func (r *Registry) SetHook(hook RegistryHook) { r.hook = hook }

// Create allocates a fresh session guarded by the given password and returns it.
// Identifiers are random UUIDs, so collisions are not a practical concern.
func (r *Registry) Create(password string) *Session {
	session := newSessionWithClock(uuid.NewString(), password, r.now)

	r.mu.Lock()
	r.sessions[session.ID()] = session
	r.mu.Unlock()

	if r.hook != nil {
		r.hook.SessionCreated(session.ID())
	}
	log.Printf("created session %s", session.ID())
	return session
}

// Get returns the session with the given id or domain.ErrSessionNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Remove deletes a session. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok && r.hook != nil {
		r.hook.SessionRemoved(id)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes every session older than the registry TTL. Expiry is measured
// from creation, not last activity, matching the observed retention policy.
func (r *Registry) Sweep() {
	r.mu.Lock()
	var expired []string
	for id, session := range r.sessions {
		if session.expired(r.ttl) {
			delete(r.sessions, id)
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		if r.hook != nil {
			r.hook.SessionRemoved(id)
		}
		log.Printf("swept expired session %s", id)
	}
}

// RunSweeper sweeps on a fixed interval until the context is canceled.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
