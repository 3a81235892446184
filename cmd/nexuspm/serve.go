package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	nxhttp "github.com/Strob0t/NexusPM/internal/adapter/http"
	nxmcp "github.com/Strob0t/NexusPM/internal/adapter/mcp"
	nxotel "github.com/Strob0t/NexusPM/internal/adapter/otel"
	"github.com/Strob0t/NexusPM/internal/adapter/ws"
	"github.com/Strob0t/NexusPM/internal/config"
	"github.com/Strob0t/NexusPM/internal/middleware"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live event stream and optional MCP endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"log_level", cfg.Logging.Level,
		"otel", cfg.OTEL.Enabled,
		"mcp", cfg.MCP.Enabled,
	)

	// --- Infrastructure ---
	shutdownOTEL, err := nxotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(flushCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// --- Services ---
	hub := ws.NewHub()
	a, err := buildApp(cfg, b, hub)
	if err != nil {
		return err
	}
	defer a.Close()

	seeded, err := a.projects.SeedDefaults(ctx)
	if err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}
	slog.Info("project catalog ready", "seeded", seeded)

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, middleware.ByIPAndParam("id"))
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	handlers := &nxhttp.Handlers{
		Projects:     a.projects,
		Connections:  a.connections,
		Orchestrator: a.orchestrator,
		Approvals:    a.approvals,
		History:      a.history,
		Admin:        a.admin,
		Store:        a.store,
		Health: nxhttp.HealthInfo{
			Version:      version,
			StoreBackend: b.name,
			Integrations: map[string]bool{
				"slack": a.health.slack,
				"figma": a.health.figma,
				"jira":  a.health.jira,
			},
			Oracle: a.health.oracle,
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(nxhttp.Logger)
	r.Use(nxhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(nxhttp.SecurityHeaders)
	r.Use(nxotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	nxhttp.MountRoutes(r, handlers, nxhttp.RouteOptions{
		TriggerLimit: limiter.Handler,
		Stream:       ws.NewHandler(hub, a.orchestrator.Trigger, cfg.Server.HeartbeatInterval),
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- MCP ---
	var mcpServer *nxmcp.Server
	if cfg.MCP.Enabled {
		mcpServer = nxmcp.NewServer(nxmcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "nexuspm",
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, nxmcp.ServerDeps{
			Projects: a.projects,
			Runs:     a.store,
			Trigger:  a.orchestrator,
			Reviewer: a.approvals,
		})
		if err := mcpServer.Start(); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	if mcpServer != nil {
		if err := mcpServer.Stop(shutdownCtx); err != nil {
			slog.Error("mcp shutdown failed", "error", err)
		}
	}

	// Runs in flight keep writing to the store until they park or fail.
	drained := make(chan struct{})
	go func() {
		a.orchestrator.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		slog.Info("in-flight runs drained")
	case <-shutdownCtx.Done():
		slog.Warn("shutdown timeout reached with runs still in flight")
	}
	return nil
}
