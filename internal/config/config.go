// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Every field can be set through an
// MSGGATE_-prefixed environment variable; zero-config defaults suit a
// single-machine dev setup.
type Config struct {
	// Addr is the listen address for the gateway HTTP server.
	Addr string `env:"ADDR" envDefault:":8080"`

	// ForwardPort is the port peer machines serve the gateway on. Forwarded
	// requests target http://<owner-address>:<ForwardPort>.
	ForwardPort int `env:"FORWARD_PORT" envDefault:"8080"`

	// DataDir is where per-tenant session artifacts live.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// StorePath is the bbolt database file for ownership records. Empty
	// selects the in-memory store (dev only).
	StorePath string `env:"STORE_PATH"`

	// SidecarURL is the base URL of the messaging-engine sidecar.
	SidecarURL string `env:"SIDECAR_URL" envDefault:"http://127.0.0.1:3500"`

	// MetadataURL is the machine metadata service used to learn this
	// instance's name.
	MetadataURL string `env:"METADATA_URL" envDefault:"http://metadata.google.internal"`

	// InventoryURL is the compute API endpoint used to resolve peer
	// addresses. Project and Zone scope the lookups.
	InventoryURL string `env:"INVENTORY_URL" envDefault:"https://compute.googleapis.com/compute/v1"`
	Project      string `env:"PROJECT"`
	Zone         string `env:"ZONE"`

	// Dev skips metadata lookups and marks sessions as locally owned.
	Dev bool `env:"DEV"`

	// MaxPairingAttempts bounds pairing challenges before teardown.
	MaxPairingAttempts int `env:"MAX_PAIRING_ATTEMPTS" envDefault:"3"`

	// ShutdownTimeout bounds graceful HTTP server shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MSGGATE_"}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.MaxPairingAttempts < 1 {
		return Config{}, fmt.Errorf("max pairing attempts must be at least 1, got %d", cfg.MaxPairingAttempts)
	}
	return cfg, nil
}
