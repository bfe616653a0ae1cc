// Package enginetest provides a scripted fake automation engine. Tests drive
// lifecycle events directly instead of waiting on a real engine, mirroring
// how the production sidecar fires them.
package enginetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetline/msggate/internal/engine"
)

// Hub creates and tracks fake engines per tenant so tests can reach the fake
// that the lifecycle manager constructed.
type Hub struct {
	mu    sync.Mutex
	fakes map[string]*Fake

	// InitErr, when set, is returned by Initialize on fakes created
	// afterwards.
	InitErr error
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{fakes: make(map[string]*Fake)}
}

// Factory returns an engine.Factory backed by this hub.
func (h *Hub) Factory() engine.Factory {
	return func(tenantID string, sink engine.EventSink) engine.Client {
		h.mu.Lock()
		defer h.mu.Unlock()

		f := &Fake{
			TenantID:   tenantID,
			sink:       sink,
			StateValue: engine.StateConnected,
			Registered: make(map[string]bool),
			initErr:    h.InitErr,
		}
		h.fakes[tenantID] = f
		return f
	}
}

// Get returns the fake created for a tenant, or nil.
func (h *Hub) Get(tenantID string) *Fake {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fakes[tenantID]
}

// SentMessage records one send call.
type SentMessage struct {
	To      string
	Body    string
	Media   *engine.Media
	Caption string
}

// Fake is a scripted engine.Client.
type Fake struct {
	TenantID string

	mu         sync.Mutex
	sink       engine.EventSink
	initErr    error
	destroyed  bool
	initCalls  int
	Sent       []SentMessage
	Registered map[string]bool

	// StateValue and StateErr script State responses.
	StateValue string
	StateErr   error

	// SendErr scripts send failures.
	SendErr error
}

func (f *Fake) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *Fake) Destroy(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	return nil
}

func (f *Fake) State(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.StateValue, f.StateErr
}

func (f *Fake) SendMessage(ctx context.Context, to, body string) (*engine.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.Sent = append(f.Sent, SentMessage{To: to, Body: body})
	return &engine.SendReceipt{ID: uuid.NewString(), To: to, Timestamp: time.Now()}, nil
}

func (f *Fake) SendMedia(ctx context.Context, to string, media engine.Media, caption string) (*engine.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.Sent = append(f.Sent, SentMessage{To: to, Media: &media, Caption: caption})
	return &engine.SendReceipt{ID: uuid.NewString(), To: to, Timestamp: time.Now()}, nil
}

func (f *Fake) IsRegisteredUser(ctx context.Context, number string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Registered[number], nil
}

// Destroyed reports whether Destroy was called.
func (f *Fake) Destroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// InitCalls reports how many times Initialize was called.
func (f *Fake) InitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls
}

// Event emitters, named after the engine events they synthesize.

func (f *Fake) EmitPairingChallenge(payload string) {
	f.sink.PairingChallenge(f.TenantID, payload)
}

func (f *Fake) EmitReady() {
	f.sink.Ready(f.TenantID)
}

func (f *Fake) EmitAuthFailure(reason string) {
	f.sink.AuthFailure(f.TenantID, reason)
}

func (f *Fake) EmitDisconnected(reason string) {
	f.sink.Disconnected(f.TenantID, reason)
}

func (f *Fake) EmitInboundMessage(msg engine.InboundMessage) {
	f.sink.InboundMessage(f.TenantID, msg)
}
