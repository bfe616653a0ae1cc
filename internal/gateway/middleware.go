package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fleetline/msggate/internal/affinity"
	"github.com/fleetline/msggate/internal/docstore"
	"github.com/fleetline/msggate/internal/secret"
)

// Router is the boundary middleware: for every tenant-bearing request it
// validates the forwarding secret, then either lets the local handlers run
// or forwards the request to the machine that owns the tenant's session.
type Router struct {
	store       docstore.Store
	resolver    *affinity.Resolver
	forwardPort int
	client      *http.Client
	logger      *slog.Logger
}

// NewRouter creates the middleware. forwardPort is the port peers serve
// this same HTTP surface on.
func NewRouter(store docstore.Store, resolver *affinity.Resolver, forwardPort int, client *http.Client, logger *slog.Logger) *Router {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:       store,
		resolver:    resolver,
		forwardPort: forwardPort,
		client:      client,
		logger:      logger,
	}
}

// Middleware returns the chi-compatible handler wrapper.
//
// Requests without a tenant id pass straight through. For the rest: verify
// the secret against the ownership record's counter (missing record or bad
// token rejects before any handling), then forward to the owning machine
// when it is not this one. Store errors and unresolvable owners degrade to
// local handling rather than failing the request.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := extractIdentity(r)
		if err != nil {
			rt.logger.Warn("request body read failed", "path", r.URL.Path, "error", err)
			if errors.Is(err, errBodyTooLarge) {
				writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeFailure(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		if id.TenantID == "" {
			next.ServeHTTP(w, r)
			return
		}

		rec, err := rt.store.Get(r.Context(), id.TenantID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				rt.logger.Warn("no ownership record for tenant",
					"tenant_id", id.TenantID, "path", r.URL.Path)
				writeFailure(w, http.StatusForbidden, "unknown client")
				return
			}
			// Transient store failure: verification and affinity are both
			// unavailable, handle locally.
			rt.logger.Warn("ownership record read failed, handling locally",
				"tenant_id", id.TenantID, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !secret.Verify(id.TenantID, rec.Counter(), id.Secret) {
			rt.logger.Warn("secret verification failed",
				"tenant_id", id.TenantID, "path", r.URL.Path)
			writeFailure(w, http.StatusForbidden, "invalid secret")
			return
		}

		addr := rt.resolver.ResolveRemoteAddress(r.Context(), id.TenantID)
		if addr == "" {
			next.ServeHTTP(w, r)
			return
		}

		rt.forward(w, r, id.TenantID, addr)
	})
}

// forward replays the request against the owning machine and relays the
// response verbatim. Single hop: the remote side is authoritative and will
// handle locally.
func (rt *Router) forward(w http.ResponseWriter, r *http.Request, tenantID, addr string) {
	target := fmt.Sprintf("http://%s:%d%s", addr, rt.forwardPort, r.URL.RequestURI())

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		writeFailure(w, http.StatusBadGateway, "forwarding failed")
		return
	}
	req.Header = r.Header.Clone()

	rt.logger.Info("forwarding request",
		"tenant_id", tenantID, "method", r.Method, "target", target)

	resp, err := rt.client.Do(req)
	if err != nil {
		rt.logger.Error("forwarded request failed",
			"tenant_id", tenantID, "target", target, "error", err)
		writeFailure(w, http.StatusBadGateway, "owning instance unreachable")
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		rt.logger.Warn("response relay interrupted",
			"tenant_id", tenantID, "error", err)
	}
}
