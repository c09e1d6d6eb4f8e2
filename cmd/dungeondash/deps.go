// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package main

import (
	"context"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/internal/config"
	"github.com/dungeondash/dungeondash/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreOpener connects the configured record stores.
	// Default: openStores
	StoreOpener func(ctx context.Context, cfg *config.Config) (*Stores, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// Stores bundles the repositories the auth service runs on.
type Stores struct {
	Accounts auth.AccountRepository
	Sessions auth.SessionRepository
	// Ping reports whether the backing services are reachable.
	Ping func(ctx context.Context) error
	// Close releases connections. Safe to call once.
	Close func()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	Registerer() prometheus.Registerer
}
