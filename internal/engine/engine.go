// Package engine defines the interface to the per-tenant messaging
// automation engine. The engine itself is an external component; this
// package only specifies the lifecycle events it emits and the send/query
// operations it exposes, so the lifecycle manager can be driven by a real
// sidecar in production and a scripted fake in tests.
package engine

import (
	"context"
	"time"
)

// StateConnected is the engine state of a fully paired, live session.
const StateConnected = "CONNECTED"

// Media is an attachment payload, base64-encoded the way the engine's wire
// format expects.
type Media struct {
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
	Filename string `json:"filename"`
	Size     int64  `json:"filesize"`
}

// SendReceipt is the engine's acknowledgment of a delivered message.
type SendReceipt struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// InboundMessage is a message received by a tenant's session.
type InboundMessage struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Body  string `json:"body"`
	Media *Media `json:"media,omitempty"`
}

// Client is one tenant's automation-engine session handle.
type Client interface {
	// Initialize starts the engine session. Pairing may take unbounded
	// wall-clock time; events arrive on the EventSink the client was
	// created with.
	Initialize(ctx context.Context) error

	// Destroy tears the engine session down.
	Destroy(ctx context.Context) error

	// State returns the engine's connection state, StateConnected when the
	// session is live.
	State(ctx context.Context) (string, error)

	SendMessage(ctx context.Context, to, body string) (*SendReceipt, error)
	SendMedia(ctx context.Context, to string, media Media, caption string) (*SendReceipt, error)
	IsRegisteredUser(ctx context.Context, number string) (bool, error)
}

// EventSink receives engine lifecycle events. The lifecycle manager
// implements it; implementations must be safe for concurrent use across
// tenants.
type EventSink interface {
	PairingChallenge(tenantID, payload string)
	Ready(tenantID string)
	AuthFailure(tenantID, reason string)
	Disconnected(tenantID, reason string)
	EngineError(tenantID string, err error)
	InboundMessage(tenantID string, msg InboundMessage)
}

// Factory creates the engine client for a tenant, wired to the given sink.
type Factory func(tenantID string, sink EventSink) Client
