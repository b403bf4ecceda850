// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/peergate/peergate/internal/auth"
	pgauth "github.com/peergate/peergate/internal/auth/postgres"
	"github.com/peergate/peergate/internal/config"
	"github.com/peergate/peergate/internal/httpapi"
	"github.com/peergate/peergate/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens a connection pool from a database URL.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string) (Database, error)

	// NotifierFactory builds the verification notifier selected by the
	// configuration. The returned func releases any held resources.
	// Default: buildNotifier
	NotifierFactory func(cfg *config.Config) (auth.Notifier, func(), error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// APIServerFactory creates the account API server.
	// Default: httpapi.NewServer
	APIServerFactory func(cfg httpapi.Config, accounts *auth.AccountService, credentials *auth.CredentialService, verification *auth.VerificationService, logger *slog.Logger, metrics *observability.Metrics) (APIServer, error)
}

// Database wraps the pool methods the serve command uses. *pgxpool.Pool
// satisfies it.
type Database interface {
	pgauth.DB
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// APIServer wraps the methods used from httpapi.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
