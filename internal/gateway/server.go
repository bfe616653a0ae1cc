// Package gateway is the HTTP boundary: the tenant-facing message API, the
// affinity-routing middleware that forwards requests to the machine owning
// a tenant's session, and the observer event stream.
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fleetline/msggate/internal/artifacts"
	"github.com/fleetline/msggate/internal/docstore"
	"github.com/fleetline/msggate/internal/session"
)

// ServerConfig wires the Server's collaborators.
type ServerConfig struct {
	Manager   *session.Manager
	Registry  *session.Registry
	Artifacts *artifacts.Manager

	// InstanceName is this machine's identity, reported by /status.
	InstanceName string

	// Store provides the fleet-wide ownership view for /status. Nil omits
	// the fleet section.
	Store docstore.Store

	// Router is the affinity middleware. Nil disables forwarding (tests).
	Router *Router

	// Events serves the observer WebSocket stream. Nil disables it.
	Events http.Handler

	// Downloads fetches media for send-image-url-message.
	Downloads *http.Client

	Logger *slog.Logger
}

// Server hosts the gateway's HTTP API.
type Server struct {
	manager      *session.Manager
	registry     *session.Registry
	artifacts    *artifacts.Manager
	instanceName string
	store        docstore.Store
	router       *Router
	events       http.Handler
	downloads    *http.Client
	logger       *slog.Logger
}

// NewServer creates a Server from cfg.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Downloads == nil {
		cfg.Downloads = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		manager:      cfg.Manager,
		registry:     cfg.Registry,
		artifacts:    cfg.Artifacts,
		instanceName: cfg.InstanceName,
		store:        cfg.Store,
		router:       cfg.Router,
		events:       cfg.Events,
		downloads:    cfg.Downloads,
		logger:       cfg.Logger,
	}
}

// Handler builds the routing table. The affinity middleware runs before
// every tenant-bearing handler; a request owned by another machine never
// reaches the local handlers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	if s.events != nil {
		r.Get("/events", s.events.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if s.router != nil {
			r.Use(s.router.Middleware)
		}

		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/send-message", s.handleSendMessage)
		r.Post("/send-image-message", s.handleSendImageMessage)
		r.Post("/send-image-url-message", s.handleSendImageURLMessage)
		r.Post("/check-state", s.handleCheckState)
		r.Post("/check-clients", s.handleCheckClients)
		r.Post("/clear-cache", s.handleClearCache)
		r.Post("/get-directory-size", s.handleGetDirectorySize)
	})

	return r
}
