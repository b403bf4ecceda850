// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

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
	"github.com/spf13/pflag"

	"github.com/peergate/peergate/internal/auth"
	pgauth "github.com/peergate/peergate/internal/auth/postgres"
	"github.com/peergate/peergate/internal/config"
	"github.com/peergate/peergate/internal/httpapi"
	"github.com/peergate/peergate/internal/logging"
	"github.com/peergate/peergate/internal/notify"
	"github.com/peergate/peergate/internal/observability"
	"github.com/peergate/peergate/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API server which handles registration, login,
email verification, and account management against PostgreSQL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	registerConfigFlags(cmd.Flags())
	return cmd
}

// registerConfigFlags declares the flags that override config file keys.
// Flag names are the dotted koanf keys so the config loader can merge
// them directly.
func registerConfigFlags(flags *pflag.FlagSet) {
	defaults := config.Default()

	flags.String("server.listen", defaults.Server.Listen, "HTTP API listen address")
	flags.String("server.metrics_listen", defaults.Server.MetricsListen, "metrics/health listen address (empty = disabled)")
	flags.String("database.url", "", "PostgreSQL connection URL")
	flags.String("notifier.kind", defaults.Notifier.Kind, "verification notifier (smtp, amqp, or log)")
	flags.String("logging.format", defaults.Logging.Format, "log format (json or text)")
	flags.String("logging.level", defaults.Logging.Level, "log level (debug, info, warn, error)")
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, url string) (Database, error) {
			return store.Connect(ctx, url)
		}
	}
	if deps.NotifierFactory == nil {
		deps.NotifierFactory = buildNotifier
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(cfg httpapi.Config, accounts *auth.AccountService, credentials *auth.CredentialService, verification *auth.VerificationService, logger *slog.Logger, metrics *observability.Metrics) (APIServer, error) {
			return httpapi.NewServer(cfg, accounts, credentials, verification, logger, metrics)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("peergate", version, cfg.Logging.Format, cfg.Logging.Level)

	slog.Info("starting account service",
		"listen", cfg.Server.Listen,
		"notifier", cfg.Notifier.Kind,
	)

	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	slog.Info("connected to database")

	accounts, credentials, verification, closeNotifier, err := buildServices(cfg, db, deps)
	if err != nil {
		return err
	}
	defer closeNotifier()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.Server.MetricsListen != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsListen, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return db.Ping(pingCtx) == nil
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVER_START_FAILED").With("server", "observability").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	apiServer, err := deps.APIServerFactory(httpapi.Config{
		Listen:      cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, accounts, credentials, verification, slog.Default(), metrics)
	if err != nil {
		return oops.Code("SERVER_START_FAILED").With("server", "api").Wrap(err)
	}

	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").With("server", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	cmd.Println("Account service started")
	slog.Info("account service ready", "addr", apiServer.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// buildServices wires the auth services against the database and the
// configured notifier. The returned func releases notifier resources.
func buildServices(cfg *config.Config, db Database, deps *ServeDeps) (*auth.AccountService, *auth.CredentialService, *auth.VerificationService, func(), error) {
	repo := pgauth.NewAccountRepository(db)
	hasher := auth.NewArgon2idHasher()

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.TokenSecret))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	policy := auth.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength}

	accounts, err := auth.NewAccountService(repo, hasher, policy)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	credentials, err := auth.NewCredentialService(repo, hasher, codec, auth.CredentialConfig{
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
		Lockout:        auth.LockoutPolicy{Threshold: cfg.Auth.LockoutThreshold},
		PasswordPolicy: policy,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	notifier, closeNotifier, err := deps.NotifierFactory(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	verification, err := auth.NewVerificationService(repo, codec, notifier, auth.VerificationConfig{
		TokenTTL:      cfg.Auth.VerificationTokenTTL,
		VerifyBaseURL: cfg.Notifier.VerifyBaseURL,
	})
	if err != nil {
		closeNotifier()
		return nil, nil, nil, nil, err
	}

	return accounts, credentials, verification, closeNotifier, nil
}

// buildNotifier constructs the notifier named by notifier.kind. The
// returned func is a no-op for transports without held connections.
func buildNotifier(cfg *config.Config) (auth.Notifier, func(), error) {
	noop := func() {}

	switch cfg.Notifier.Kind {
	case "smtp":
		notifier, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Notifier.SMTP.Host,
			Port:     cfg.Notifier.SMTP.Port,
			Username: cfg.Notifier.SMTP.Username,
			Password: cfg.Notifier.SMTP.Password,
			From:     cfg.Notifier.SMTP.From,
		})
		if err != nil {
			return nil, nil, err
		}
		return notifier, noop, nil
	case "amqp":
		notifier, err := notify.NewAMQPNotifier(cfg.Notifier.AMQP.URL)
		if err != nil {
			return nil, nil, err
		}
		return notifier, notifier.Close, nil
	case "log":
		return notify.NewLogNotifier(nil), noop, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("kind", cfg.Notifier.Kind).
			Errorf("unknown notifier kind")
	}
}

// monitorServerErrors cancels the context when a server reports an
// error, so one failing listener takes the whole process down cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
