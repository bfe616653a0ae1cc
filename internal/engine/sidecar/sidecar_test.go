package sidecar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetline/msggate/internal/engine"
	"github.com/fleetline/msggate/internal/engine/sidecar"
)

// sinkRecorder captures engine events as "type:detail" strings.
type sinkRecorder struct {
	mu     sync.Mutex
	events []string
}

func (s *sinkRecorder) add(ev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sinkRecorder) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *sinkRecorder) PairingChallenge(_, payload string)           { s.add("pairing:" + payload) }
func (s *sinkRecorder) Ready(string)                                 { s.add("ready") }
func (s *sinkRecorder) AuthFailure(_, reason string)                 { s.add("auth_failure:" + reason) }
func (s *sinkRecorder) Disconnected(_, reason string)                { s.add("disconnected:" + reason) }
func (s *sinkRecorder) EngineError(string, error)                    { s.add("error") }
func (s *sinkRecorder) InboundMessage(string, engine.InboundMessage) { s.add("message") }

func TestInitializeStreamsEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions/acme/initialize", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/sessions/acme/events", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer ws.Close()
		require.NoError(t, ws.WriteJSON(map[string]string{"type": "qr", "payload": "pair-me"}))
		require.NoError(t, ws.WriteJSON(map[string]string{"type": "ready"}))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := &sinkRecorder{}
	conn := sidecar.New(sidecar.Config{BaseURL: srv.URL})
	cl := conn.Factory()("acme", sink)

	require.NoError(t, cl.Initialize(context.Background()))

	require.Eventually(t, func() bool { return len(sink.all()) == 2 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"pairing:pair-me", "ready"}, sink.all())
}

func TestInitializeCleansUpWhenEventStreamUnavailable(t *testing.T) {
	var mu sync.Mutex
	var destroyed bool

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions/acme/initialize", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /sessions/acme/destroy", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		destroyed = true
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	// No events endpoint: the upgrade dial fails after initialize succeeded.
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cl := sidecar.New(sidecar.Config{BaseURL: srv.URL}).Factory()("acme", &sinkRecorder{})

	err := cl.Initialize(context.Background())
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, destroyed, "failed start must not orphan the sidecar session")
}

func TestInitializeErrorFromSidecar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cl := sidecar.New(sidecar.Config{BaseURL: srv.URL}).Factory()("acme", &sinkRecorder{})

	require.Error(t, cl.Initialize(context.Background()))
}
