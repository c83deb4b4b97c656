// Package app initializes and orchestrates the main components of the
// Merge-Warden application. It wires together the configuration, the job
// queue, the workflow orchestrator, and the HTTP server.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/sevigo/merge-warden/internal/config"
	"github.com/sevigo/merge-warden/internal/server"
	"github.com/sevigo/merge-warden/internal/workflow"
)

// App holds the main application components.
type App struct {
	ctx      context.Context
	cfg      *config.Config
	server   *server.Server
	workflow *workflow.Service
	logger   *slog.Logger
}

// NewApp assembles the application from its already-constructed dependencies.
// All wiring happens in the composition root; nothing here is a global.
func NewApp(ctx context.Context, cfg *config.Config, srv *server.Server, wf *workflow.Service, logger *slog.Logger) *App {
	return &App{
		ctx:      ctx,
		cfg:      cfg,
		server:   srv,
		workflow: wf,
		logger:   logger,
	}
}

// Start runs the HTTP server and blocks until shutdown or error.
func (a *App) Start() error {
	a.logger.Info("starting Merge-Warden",
		"server_port", a.cfg.Server.Port,
		"max_concurrent_jobs", a.cfg.Queue.MaxConcurrentJobs)

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly: the HTTP server first so no new
// submissions arrive, then the workflow (which drains the job queue).
func (a *App) Stop() error {
	a.logger.Info("shutting down Merge-Warden services")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop other components even if the server failed.
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.workflow.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error during queue shutdown", "error", err)
	}

	if serverErr != nil {
		a.logger.Error("Merge-Warden stopped with errors", "error", serverErr)
		return serverErr
	}

	a.logger.Info("Merge-Warden stopped successfully")
	return nil
}
