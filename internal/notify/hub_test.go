package notify_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetline/msggate/internal/notify"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHubBroadcastsSessionEvents(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Observers() == 1 },
		time.Second, 5*time.Millisecond)

	hub.SessionEvent("acme", "pairing", "qr-payload")

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	var ev notify.Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "acme", ev.TenantID)
	assert.Equal(t, "pairing", ev.Type)
	assert.Equal(t, "qr-payload", ev.Payload)
	assert.NotEmpty(t, ev.ID)
}

func TestHubShutdownNotifiesObservers(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Observers() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Shutdown(context.Background())

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
	var ev notify.Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "shutdown", ev.Type)
	assert.Zero(t, hub.Observers())
}

func TestHubSerializesConcurrentBroadcasts(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Observers() == 1 },
		time.Second, 5*time.Millisecond)

	// Engine events for different tenants arrive on independent goroutines;
	// all of their writes must land intact on the one connection.
	const (
		emitters   = 4
		perEmitter = 50
	)
	var wg sync.WaitGroup
	for g := 0; g < emitters; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			tenant := fmt.Sprintf("tenant-%d", g)
			for i := 0; i < perEmitter; i++ {
				hub.SessionEvent(tenant, "message", i)
			}
		}(g)
	}

	for i := 0; i < emitters*perEmitter; i++ {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev notify.Event
		require.NoError(t, ws.ReadJSON(&ev))
		assert.Equal(t, "message", ev.Type)
	}
	wg.Wait()
	assert.Equal(t, 1, hub.Observers(), "no writer failure drops the observer")
}

func TestHubDropsClosedObservers(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Observers() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool { return hub.Observers() == 0 },
		time.Second, 5*time.Millisecond)
}
