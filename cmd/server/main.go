package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/merge-warden/internal/wire"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application failed to run", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, cleanup, err := wire.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	slog.Info("starting Merge-Warden application")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Start()
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("received shutdown signal")
		case <-gctx.Done():
			slog.Info("context cancelled, shutting down")
		}
		return app.Stop()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("application exited with error: %w", err)
	}
	return nil
}
