package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetline/msggate/internal/artifacts"
	"github.com/fleetline/msggate/internal/docstore"
	"github.com/fleetline/msggate/internal/engine"
)

var (
	// ErrTenantRequired is returned by Start and Stop for an empty tenant id.
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrNoSession is returned by Stop when the tenant has no live session.
	ErrNoSession = errors.New("no live session for tenant")
)

// Notifier receives session lifecycle events for connected observers
// (pairing payloads to scan, ready/destroyed transitions, inbound messages).
type Notifier interface {
	SessionEvent(tenantID, event string, payload any)
}

// NopNotifier discards events.
type NopNotifier struct{}

// SessionEvent implements Notifier.
func (NopNotifier) SessionEvent(string, string, any) {}

// Config wires a Manager's collaborators.
type Config struct {
	// InstanceName is this machine's identity, written to ownership
	// records on ready transitions.
	InstanceName string

	// MaxPairingAttempts bounds pairing challenges before forced
	// teardown. Defaults to 3.
	MaxPairingAttempts int

	// InitTimeout bounds engine initialization. Defaults to 2 minutes;
	// pairing itself is unbounded and happens after initialization.
	InitTimeout time.Duration

	// OpTimeout bounds document-store and engine calls made from event
	// handlers. Defaults to 15 seconds.
	OpTimeout time.Duration

	Registry  *Registry
	Store     docstore.Store
	Engines   engine.Factory
	Artifacts *artifacts.Manager
	Notifier  Notifier
	Logger    *slog.Logger
}

// Manager owns every session's state machine on this machine. It is the
// registry's only writer and implements engine.EventSink so engine callbacks
// drive transitions. Per-tenant transitions are serialized by the session's
// own mutex; different tenants proceed concurrently.
type Manager struct {
	instanceName string
	maxPairing   int
	initTimeout  time.Duration
	opTimeout    time.Duration

	registry  *Registry
	store     docstore.Store
	engines   engine.Factory
	artifacts *artifacts.Manager
	notifier  Notifier
	logger    *slog.Logger

	// createMu serializes cold-tenant creation so two concurrent Starts
	// cannot race a second session into the registry.
	createMu sync.Mutex
}

// NewManager creates a Manager from cfg, applying defaults for unset knobs.
func NewManager(cfg Config) *Manager {
	if cfg.MaxPairingAttempts <= 0 {
		cfg.MaxPairingAttempts = 3
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 2 * time.Minute
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 15 * time.Second
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		instanceName: cfg.InstanceName,
		maxPairing:   cfg.MaxPairingAttempts,
		initTimeout:  cfg.InitTimeout,
		opTimeout:    cfg.OpTimeout,
		registry:     cfg.Registry,
		store:        cfg.Store,
		engines:      cfg.Engines,
		artifacts:    cfg.Artifacts,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger,
	}
}

// Start ensures a session exists for the tenant and returns it. Calling
// Start on a tenant with a live session is a no-op success, whatever state
// the session is in: a READY session stays untouched and an initializing one
// keeps initializing. For a cold tenant the engine initializes in the
// background and Start returns immediately; pairing can take unbounded
// wall-clock time, so callers get the session in StateInitializing and
// observe progress via check-state or the event stream.
func (m *Manager) Start(ctx context.Context, tenantID string) (*Session, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	if s, ok := m.registry.Get(tenantID); ok {
		return s, nil
	}

	now := time.Now()
	s := &Session{
		TenantID:   tenantID,
		CreatedAt:  now,
		state:      StateInitializing,
		lastActive: now,
	}
	s.engine = m.engines(tenantID, m)
	m.registry.put(s)

	m.logger.Info("starting session", "tenant_id", tenantID)
	go m.initialize(s)

	return s, nil
}

// initialize runs engine startup off the request path. Failure leaves the
// tenant startable again: absence from the registry means "not started" and
// callers may retry.
func (m *Manager) initialize(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.initTimeout)
	defer cancel()

	if err := s.Engine().Initialize(ctx); err != nil {
		m.logger.Error("engine initialization failed",
			"tenant_id", s.TenantID, "error", err)
		m.registry.remove(s.TenantID)
		s.mu.Lock()
		s.state = StateDestroyed
		s.mu.Unlock()
	}
}

// Stop destroys a tenant's session and cleans up its artifacts.
func (m *Manager) Stop(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	s, ok := m.registry.Get(tenantID)
	if !ok {
		return ErrNoSession
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	m.teardown(s, "stopped")
	return nil
}

// PairingChallenge implements engine.EventSink. Each challenge consumes one
// pairing attempt; exceeding the bound forces teardown so an unattended
// tenant cannot hold engine resources forever.
func (m *Manager) PairingChallenge(tenantID, payload string) {
	s, ok := m.registry.Get(tenantID)
	if !ok {
		return
	}

	s.mu.Lock()
	s.pairingAttempts++
	s.touch()
	attempts := s.pairingAttempts
	exhausted := attempts > m.maxPairing
	if exhausted {
		s.state = StateDisconnected
	} else {
		s.state = StateAwaitingPairing
	}
	s.mu.Unlock()

	if exhausted {
		m.logger.Warn("pairing attempts exhausted, destroying session",
			"tenant_id", tenantID, "attempts", attempts)
		m.teardown(s, "pairing attempts exhausted")
		return
	}

	m.logger.Info("pairing challenge issued",
		"tenant_id", tenantID, "attempt", attempts)

	ctx, cancel := m.opCtx()
	defer cancel()
	err := m.store.Merge(ctx, tenantID, docstore.Patch{
		Status:         docstore.Ptr(docstore.StatusDisconnected),
		PairingPayload: docstore.Ptr(payload),
		LastUpdated:    docstore.Ptr(time.Now()),
	})
	if err != nil {
		m.logger.Warn("pairing payload write failed",
			"tenant_id", tenantID, "error", err)
	}

	m.notifier.SessionEvent(tenantID, "pairing", payload)
}

// Ready implements engine.EventSink. The session is paired and live; this
// machine claims ownership in the shared document store.
func (m *Manager) Ready(tenantID string) {
	s, ok := m.registry.Get(tenantID)
	if !ok {
		return
	}

	s.mu.Lock()
	s.state = StateReady
	s.pairingAttempts = 0
	s.touch()
	s.mu.Unlock()

	m.logger.Info("session ready", "tenant_id", tenantID, "instance", m.instanceName)

	ctx, cancel := m.opCtx()
	defer cancel()
	err := m.store.Merge(ctx, tenantID, docstore.Patch{
		Status:         docstore.Ptr(docstore.StatusReady),
		InstanceName:   docstore.Ptr(m.instanceName),
		LastUpdated:    docstore.Ptr(time.Now()),
		PairingPayload: docstore.Ptr(""),
	})
	if err != nil {
		m.logger.Warn("ownership record write failed",
			"tenant_id", tenantID, "error", err)
	}

	m.notifier.SessionEvent(tenantID, "ready", nil)
}

// AuthFailure implements engine.EventSink.
func (m *Manager) AuthFailure(tenantID, reason string) {
	m.logger.Warn("engine authentication failure",
		"tenant_id", tenantID, "reason", reason)
}

// Disconnected implements engine.EventSink.
func (m *Manager) Disconnected(tenantID, reason string) {
	s, ok := m.registry.Get(tenantID)
	if !ok {
		return
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	m.logger.Warn("engine disconnected", "tenant_id", tenantID, "reason", reason)
	m.teardown(s, reason)
}

// EngineError implements engine.EventSink. A single tenant's engine error is
// logged and never propagated; the process keeps serving other tenants.
func (m *Manager) EngineError(tenantID string, err error) {
	m.logger.Error("engine error", "tenant_id", tenantID, "error", err)
}

// InboundMessage implements engine.EventSink.
func (m *Manager) InboundMessage(tenantID string, msg engine.InboundMessage) {
	if s, ok := m.registry.Get(tenantID); ok {
		s.mu.Lock()
		s.touch()
		s.mu.Unlock()
	}

	if m.artifacts != nil {
		if err := m.artifacts.AppendMessageLog(tenantID, msg); err != nil {
			m.logger.Warn("message log append failed",
				"tenant_id", tenantID, "error", err)
		}
	}

	m.notifier.SessionEvent(tenantID, "message", msg)
}

// teardown removes the session from the registry, destroys the engine,
// marks the tenant unowned in the document store, and deletes local
// artifacts. Idempotent: only the caller that wins the registry removal
// proceeds.
func (m *Manager) teardown(s *Session, reason string) {
	if !m.registry.remove(s.TenantID) {
		return
	}

	ctx, cancel := m.opCtx()
	defer cancel()

	if err := s.Engine().Destroy(ctx); err != nil {
		m.logger.Warn("engine destroy failed",
			"tenant_id", s.TenantID, "error", err)
	}

	err := m.store.Merge(ctx, s.TenantID, docstore.Patch{
		Status:         docstore.Ptr(docstore.StatusDisconnected),
		InstanceName:   docstore.Ptr(""),
		LastUpdated:    docstore.Ptr(time.Now()),
		PairingPayload: docstore.Ptr(""),
	})
	if err != nil {
		m.logger.Warn("ownership record clear failed",
			"tenant_id", s.TenantID, "error", err)
	}

	if m.artifacts != nil {
		// Best effort; failures are logged inside.
		_ = m.artifacts.RemoveSessionDir(s.TenantID)
	}

	s.mu.Lock()
	s.state = StateDestroyed
	s.mu.Unlock()

	m.logger.Info("session destroyed", "tenant_id", s.TenantID, "reason", reason)
	m.notifier.SessionEvent(s.TenantID, "destroyed", reason)
}

func (m *Manager) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opTimeout)
}
