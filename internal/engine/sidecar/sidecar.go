// Package sidecar adapts the automation-engine sidecar daemon to the engine
// interfaces. The sidecar runs one per machine, hosts the actual messaging
// clients, and exposes a small HTTP API plus a per-session WebSocket event
// stream; this package is the only code that knows that wire surface.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetline/msggate/internal/engine"
)

// Config configures the sidecar connector.
type Config struct {
	// BaseURL is the sidecar HTTP endpoint, e.g. http://127.0.0.1:3500.
	BaseURL string

	// HTTPClient is used for all request/response calls. Defaults to a
	// client with a 30s timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Connector creates engine clients backed by one sidecar daemon.
type Connector struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Connector for the sidecar at cfg.BaseURL.
func New(cfg Config) *Connector {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Factory returns an engine.Factory producing sidecar-backed clients.
func (c *Connector) Factory() engine.Factory {
	return func(tenantID string, sink engine.EventSink) engine.Client {
		return &client{
			conn:     c,
			tenantID: tenantID,
			sink:     sink,
			done:     make(chan struct{}),
		}
	}
}

type client struct {
	conn     *Connector
	tenantID string
	sink     engine.EventSink
	done     chan struct{}
}

// event is one message on the sidecar's session event stream.
type event struct {
	Type    string                 `json:"type"`
	Payload string                 `json:"payload,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Message *engine.InboundMessage `json:"message,omitempty"`
}

func (cl *client) Initialize(ctx context.Context) error {
	if err := cl.conn.postJSON(ctx, cl.sessionPath("initialize"), nil, nil); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	ws, err := cl.dialEvents(ctx)
	if err != nil {
		// The session is already live on the sidecar; tear it down so the
		// failed start does not leave orphaned remote state.
		if derr := cl.conn.postJSON(ctx, cl.sessionPath("destroy"), nil, nil); derr != nil {
			cl.conn.logger.Warn("sidecar session cleanup failed after dial error",
				"tenant_id", cl.tenantID, "error", derr)
		}
		return fmt.Errorf("dial event stream: %w", err)
	}
	go cl.readEvents(ws)
	return nil
}

func (cl *client) Destroy(ctx context.Context) error {
	select {
	case <-cl.done:
	default:
		close(cl.done)
	}
	if err := cl.conn.postJSON(ctx, cl.sessionPath("destroy"), nil, nil); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func (cl *client) State(ctx context.Context) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := cl.conn.getJSON(ctx, cl.sessionPath("state"), &out); err != nil {
		return "", err
	}
	return out.State, nil
}

func (cl *client) SendMessage(ctx context.Context, to, body string) (*engine.SendReceipt, error) {
	req := map[string]string{"to": to, "body": body}
	var receipt engine.SendReceipt
	if err := cl.conn.postJSON(ctx, cl.sessionPath("messages"), req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (cl *client) SendMedia(ctx context.Context, to string, media engine.Media, caption string) (*engine.SendReceipt, error) {
	req := struct {
		To      string       `json:"to"`
		Media   engine.Media `json:"media"`
		Caption string       `json:"caption,omitempty"`
	}{To: to, Media: media, Caption: caption}

	var receipt engine.SendReceipt
	if err := cl.conn.postJSON(ctx, cl.sessionPath("media"), req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (cl *client) IsRegisteredUser(ctx context.Context, number string) (bool, error) {
	var out struct {
		Registered bool `json:"registered"`
	}
	path := cl.sessionPath("registered") + "?number=" + url.QueryEscape(number)
	if err := cl.conn.getJSON(ctx, path, &out); err != nil {
		return false, err
	}
	return out.Registered, nil
}

func (cl *client) sessionPath(op string) string {
	return "/sessions/" + url.PathEscape(cl.tenantID) + "/" + op
}

func (cl *client) dialEvents(ctx context.Context) (*websocket.Conn, error) {
	wsURL := cl.conn.baseURL + cl.sessionPath("events")
	wsURL = strings.Replace(wsURL, "http", "ws", 1)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return ws, err
}

// readEvents pumps sidecar events into the sink until the stream closes or
// the client is destroyed.
func (cl *client) readEvents(ws *websocket.Conn) {
	defer ws.Close()

	go func() {
		<-cl.done
		_ = ws.Close()
	}()

	for {
		var ev event
		if err := ws.ReadJSON(&ev); err != nil {
			select {
			case <-cl.done:
			default:
				cl.conn.logger.Warn("sidecar event stream closed",
					"tenant_id", cl.tenantID, "error", err)
			}
			return
		}
		cl.dispatch(ev)
	}
}

func (cl *client) dispatch(ev event) {
	switch ev.Type {
	case "pairing", "qr":
		cl.sink.PairingChallenge(cl.tenantID, ev.Payload)
	case "ready":
		cl.sink.Ready(cl.tenantID)
	case "auth_failure":
		cl.sink.AuthFailure(cl.tenantID, ev.Reason)
	case "disconnected":
		cl.sink.Disconnected(cl.tenantID, ev.Reason)
	case "error":
		cl.sink.EngineError(cl.tenantID, fmt.Errorf("sidecar: %s", ev.Reason))
	case "message":
		if ev.Message != nil {
			cl.sink.InboundMessage(cl.tenantID, *ev.Message)
		}
	default:
		cl.conn.logger.Debug("unknown sidecar event",
			"tenant_id", cl.tenantID, "type", ev.Type)
	}
}

func (c *Connector) postJSON(ctx context.Context, path string, body, out any) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Connector) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Connector) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sidecar %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
