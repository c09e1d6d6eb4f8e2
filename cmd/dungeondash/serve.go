// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dungeondash/dungeondash/internal/api"
	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/internal/config"
	"github.com/dungeondash/dungeondash/internal/logging"
	"github.com/dungeondash/dungeondash/internal/observability"
	"github.com/dungeondash/dungeondash/internal/roster"
)

const (
	serviceName      = "dungeondash"
	readinessTimeout = time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account and session API server",
		Long: `Start the HTTP API serving signup, login, public profiles and
session lookup, plus the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return oops.With("operation", "load config").Wrap(err)
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().String("addr", defaults.Server.Addr, "API listen address")
	cmd.Flags().String("metrics-addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("accounts-store", defaults.Store.Accounts, "account store (postgres or memory)")
	cmd.Flags().String("sessions-store", defaults.Store.Sessions, "session store (postgres, memory or redis)")
	cmd.Flags().String("redis-addr", defaults.Redis.Addr, "redis address for the redis session store")
	cmd.Flags().String("roster-file", "", "character roster YAML (default: built-in roster)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStores
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = newObservabilityServer
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, level)

	logger.Info("starting server",
		"addr", cfg.Server.Addr,
		"accounts_store", cfg.Store.Accounts,
		"sessions_store", cfg.Store.Sessions,
		"hasher", cfg.Auth.Hasher.Algorithm,
	)

	characters, err := roster.LoadFile(cfg.Roster.File)
	if err != nil {
		return oops.With("operation", "load roster").Wrap(err)
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher)
	if err != nil {
		return err
	}

	stores, err := deps.StoreOpener(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open stores").Wrap(err)
	}
	defer stores.Close()

	directory, err := auth.NewDirectory(stores.Accounts, hasher)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionManager(stores.Sessions, stores.Accounts,
		auth.WithTokenLength(cfg.Auth.TokenLength))
	if err != nil {
		return err
	}
	service, err := auth.NewServiceWithLogger(directory, sessions, hasher, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	readiness := func() bool {
		if !ready.Load() {
			return false
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, readinessTimeout)
		defer pingCancel()
		if err := stores.Ping(pingCtx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			return false
		}
		return true
	}

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness)
		auth.RegisterMetrics(obsServer.Registerer())
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(api.Options{
		Service: service,
		Roster:  characters,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		stopObservability(obsServer, cfg.Server.ShutdownTimeout)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()
	ready.Store(true)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Server started")
	logger.Info("server ready", "addr", listener.Addr().String())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		serveErr = oops.Code("SERVE_FAILED").Wrap(serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	logger.Info("shutting down...")
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	stopObservability(obsServer, cfg.Server.ShutdownTimeout)

	logger.Info("shutdown complete")
	return serveErr
}

func newObservabilityServer(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
	return observability.NewServer(addr, readinessChecker)
}

func stopObservability(server ObservabilityServer, timeout time.Duration) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
