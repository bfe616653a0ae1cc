package session

import "sync"

// Registry is the process-wide map from tenant id to live session — the
// single source of truth for what this machine hosts. It holds at most one
// live session per tenant; the Manager is its only writer.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the live session for a tenant.
func (r *Registry) Get(tenantID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tenantID]
	return s, ok
}

// put stores a session, replacing any previous one for the tenant.
func (r *Registry) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.TenantID] = s
}

// remove deletes a tenant's session and reports whether one was present.
func (r *Registry) remove(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[tenantID]
	delete(r.sessions, tenantID)
	return ok
}

// List returns the current sessions in no particular order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict removes a tenant's session without lifecycle teardown. Used when a
// state check shows the engine handle is already dead.
func (r *Registry) Evict(tenantID string) bool {
	return r.remove(tenantID)
}
