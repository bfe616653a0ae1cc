package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/fleetline/msggate/internal/affinity"
	"github.com/fleetline/msggate/internal/artifacts"
	"github.com/fleetline/msggate/internal/config"
	"github.com/fleetline/msggate/internal/docstore"
	"github.com/fleetline/msggate/internal/docstore/bolt"
	"github.com/fleetline/msggate/internal/docstore/memory"
	"github.com/fleetline/msggate/internal/engine/sidecar"
	"github.com/fleetline/msggate/internal/gateway"
	"github.com/fleetline/msggate/internal/notify"
	"github.com/fleetline/msggate/internal/session"
)

const appVersion = "0.1.0"

var (
	version = flag.Bool("version", false, "Print version and exit")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	dev     = flag.Bool("dev", false, "Run in dev mode: localhost identity, no metadata lookups")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("msggate v" + appVersion)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dev {
		cfg.Dev = true
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceName, err := affinity.ResolveInstanceName(ctx, affinity.IdentityConfig{
		Dev:             cfg.Dev,
		MetadataBaseURL: cfg.MetadataURL,
	})
	if err != nil {
		return fmt.Errorf("resolve instance identity: %w", err)
	}

	logger.Info("starting gateway",
		"version", appVersion,
		"instance", instanceName,
		"addr", cfg.Addr,
		"dev", cfg.Dev,
	)

	var store docstore.Store
	if cfg.StorePath != "" {
		db, err := bolt.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer db.Close()
		store = db
	} else {
		logger.Warn("no store path configured, ownership records are in-memory only")
		store = memory.New()
	}

	inventory := affinity.NewComputeInventory(cfg.InventoryURL, cfg.Project, cfg.Zone, nil)
	resolver := affinity.NewResolver(store, inventory, instanceName, logger)

	artifactMgr := artifacts.New(afero.NewOsFs(), cfg.DataDir, logger)
	hub := notify.NewHub(logger)

	engines := sidecar.New(sidecar.Config{
		BaseURL: cfg.SidecarURL,
		Logger:  logger,
	})

	registry := session.NewRegistry()
	manager := session.NewManager(session.Config{
		InstanceName:       instanceName,
		MaxPairingAttempts: cfg.MaxPairingAttempts,
		Registry:           registry,
		Store:              store,
		Engines:            engines.Factory(),
		Artifacts:          artifactMgr,
		Notifier:           hub,
		Logger:             logger,
	})
	router := gateway.NewRouter(store, resolver, cfg.ForwardPort, nil, logger)
	server := gateway.NewServer(gateway.ServerConfig{
		Manager:      manager,
		Registry:     registry,
		Artifacts:    artifactMgr,
		InstanceName: instanceName,
		Store:        store,
		Router:       router,
		Events:       hub,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Observers get a shutdown notice before the listener drains so a tenant
	// mid-pairing is not cut off silently.
	hub.Shutdown(shutdownCtx)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}
