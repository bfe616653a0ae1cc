// Package session owns the per-tenant session lifecycle: the entity and its
// state machine, the process-wide registry, and the Manager that drives
// transitions in response to automation-engine events.
package session

import (
	"sync"
	"time"

	"github.com/fleetline/msggate/internal/engine"
)

// State is a session's lifecycle state.
type State string

const (
	// StateInitializing: engine startup in progress.
	StateInitializing State = "initializing"
	// StateAwaitingPairing: a pairing challenge has been issued and the
	// tenant must complete it out of band.
	StateAwaitingPairing State = "awaiting_pairing"
	// StateReady: session is paired and live; this machine is
	// authoritative for the tenant.
	StateReady State = "ready"
	// StateDisconnected: engine lost the session.
	StateDisconnected State = "disconnected"
	// StateDestroyed: terminal, artifacts cleaned up.
	StateDestroyed State = "destroyed"
)

// Session is one tenant's live automation-engine client plus its lifecycle
// bookkeeping. All mutation happens under mu, which also serializes the
// tenant's state transitions (single writer per tenant).
type Session struct {
	TenantID  string
	CreatedAt time.Time

	mu              sync.Mutex
	state           State
	pairingAttempts int
	lastActive      time.Time
	engine          engine.Client
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PairingAttempts returns the pairing challenge count since the last
// successful pairing.
func (s *Session) PairingAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairingAttempts
}

// Engine returns the session's engine handle.
func (s *Session) Engine() engine.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// LastActive returns the time of the last observed engine activity.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}
