package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/martinsuchenak/deskd/internal/api"
	"github.com/martinsuchenak/deskd/internal/config"
	"github.com/martinsuchenak/deskd/internal/gateway"
	"github.com/martinsuchenak/deskd/internal/identity"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/manager"
	"github.com/martinsuchenak/deskd/internal/mcp"
	"github.com/martinsuchenak/deskd/internal/registry"
	"github.com/martinsuchenak/deskd/internal/storage"
	"github.com/martinsuchenak/deskd/internal/ui"
	"github.com/paularlott/cli"
)

const shutdownTimeout = 10 * time.Second

func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the deskd server",
		Description: "Start the HTTP server with the dashboard, API and MCP endpoints",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				log.Error("Invalid configuration", "error", err)
				return err
			}

			log.Info("Configuration loaded",
				"data_dir", cfg.DataDir,
				"listen_addr", cfg.ListenAddr,
				"gateway", cfg.Gateway)

			store, err := storage.NewStorage(cfg.StorageBackend, cfg.DataDir, cfg.StorageFormat)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Storage initialized", "backend", cfg.StorageBackend, "path", cfg.DataDir)

			gw, err := gateway.Open(cfg.Gateway, gateway.Options{
				ToolsDir: cfg.ToolsDir,
				Timeout:  cfg.GatewayTimeout,
			})
			if err != nil {
				log.Error("Failed to initialize device gateway", "error", err)
				return err
			}

			reg := registry.NewRegistry(gw, identity.NewResolver(), store)
			mgr := manager.New(reg, store)
			defer mgr.Close()

			if _, err := reg.Refresh(ctx); err != nil {
				// The server still starts; every read retries the enumeration.
				log.Warn("Initial device enumeration failed", "error", err)
			}

			if cfg.SchedulerEnabled {
				if err := mgr.StartScheduler(); err != nil {
					log.Error("Failed to start scheduler", "error", err)
					return err
				}
			}

			return RunServer(ctx, cfg, mgr)
		},
	}
}

// RunServer serves the API and MCP endpoints until ctx is cancelled or the
// process receives SIGINT/SIGTERM
func RunServer(ctx context.Context, cfg *config.Config, mgr *manager.Manager) error {
	apiHandler := api.NewHandler(mgr)
	mcpServer := mcp.NewServer(mgr, cfg.MCPAuthToken)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)
	mux.HandleFunc("/mcp", mcpServer.GetHTTPHandler())
	mux.Handle("/", ui.AssetHandler())

	var handler http.Handler = mux
	if cfg.IsAPIAuthEnabled() {
		handler = api.AuthMiddleware(cfg.APIAuthToken, handler)
	}
	handler = api.LoggingMiddleware(handler)
	handler = api.SecurityHeadersMiddleware(handler)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	base := cfg.ServerURL()
	log.Info("Starting deskd server", "addr", cfg.ListenAddr)
	log.Info("Dashboard available", "url", base+"/")
	log.Info("API available", "url", base+"/api/")
	log.Info("MCP available", "url", base+"/mcp")
	if cfg.IsAPIAuthEnabled() {
		log.Info("API authentication enabled")
	}
	mcpServer.LogStartup()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server error", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}
