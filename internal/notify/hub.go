// Package notify fans session lifecycle events out to connected WebSocket
// observers. The pairing payload reaches the tenant's operator this way, and
// a shutdown notice is broadcast before the process exits so observers are
// never cut off silently mid-pairing.
package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is one observer-visible notification.
type Event struct {
	ID       string    `json:"id"`
	TenantID string    `json:"clientId,omitempty"`
	Type     string    `json:"type"`
	Payload  any       `json:"payload,omitempty"`
	Time     time.Time `json:"time"`
}

const writeTimeout = 5 * time.Second

// observer is one connected client. The websocket connection allows a single
// concurrent writer, and events arrive from per-tenant engine goroutines, so
// every write goes through mu.
type observer struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (o *observer) writeJSON(v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return o.ws.WriteJSON(v)
}

func (o *observer) writeClose(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, reason),
		time.Now().Add(writeTimeout))
}

// Hub tracks observer connections and broadcasts events to all of them.
// Implements session.Notifier.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	observers map[*observer]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// Observers authenticate upstream; the hub only pushes.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		observers: make(map[*observer]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the observer until its
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("observer upgrade failed", "error", err)
		return
	}

	o := &observer{ws: ws}
	h.mu.Lock()
	h.observers[o] = struct{}{}
	count := len(h.observers)
	h.mu.Unlock()
	h.logger.Info("observer connected", "observers", count)

	// Drain (and discard) client frames so pings and closes are handled.
	go func() {
		defer h.drop(o)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// SessionEvent implements session.Notifier.
func (h *Hub) SessionEvent(tenantID, event string, payload any) {
	h.Broadcast(Event{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Type:     event,
		Payload:  payload,
		Time:     time.Now(),
	})
}

// Broadcast sends the event to every connected observer, dropping
// connections that fail to accept the write.
func (h *Hub) Broadcast(ev Event) {
	for _, o := range h.snapshot() {
		if err := o.writeJSON(ev); err != nil {
			h.logger.Warn("observer write failed, dropping", "error", err)
			h.drop(o)
		}
	}
}

// Observers returns the number of connected observers.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Shutdown broadcasts a shutdown notice and closes all observer
// connections.
func (h *Hub) Shutdown(ctx context.Context) {
	h.Broadcast(Event{
		ID:   uuid.NewString(),
		Type: "shutdown",
		Time: time.Now(),
	})

	h.mu.Lock()
	observers := make([]*observer, 0, len(h.observers))
	for o := range h.observers {
		observers = append(observers, o)
	}
	h.observers = make(map[*observer]struct{})
	h.mu.Unlock()

	for _, o := range observers {
		o.writeClose("server shutting down")
		_ = o.ws.Close()
	}
}

func (h *Hub) snapshot() []*observer {
	h.mu.Lock()
	defer h.mu.Unlock()
	observers := make([]*observer, 0, len(h.observers))
	for o := range h.observers {
		observers = append(observers, o)
	}
	return observers
}

func (h *Hub) drop(o *observer) {
	h.mu.Lock()
	_, present := h.observers[o]
	delete(h.observers, o)
	h.mu.Unlock()

	if present {
		_ = o.ws.Close()
	}
}
