// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/palisade/palisade/internal/observability"
)

// Shutdown grace for the observability server.
const observeShutdownTimeout = 5 * time.Second

// NewObserveCmd creates the observe subcommand.
func NewObserveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "observe",
		Short: "Serve metrics and health endpoints",
		Long: `Run the observability HTTP server, exposing Prometheus metrics at
/metrics and liveness/readiness probes at /healthz and /readyz.
Readiness reflects database connectivity.`,
		RunE: runObserve,
	}
}

func runObserve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("metrics.addr is required for the observe command")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	slog.Info("connected to database")

	server := observability.NewServer(cfg.Metrics.Addr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		defer pingCancel()
		return rt.pool.Ping(pingCtx) == nil
	})

	errChan, err := server.Start()
	if err != nil {
		return oops.Code("OBSERVE_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
	}

	cmd.Printf("Observability server listening on %s\n", server.Addr())
	slog.Info("observability server started", "addr", server.Addr())

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case serveErr, ok := <-errChan:
		if ok && serveErr != nil {
			return oops.Code("OBSERVE_FAILED").Wrap(serveErr)
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), observeShutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
