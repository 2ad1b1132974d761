// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Maggotxy/cube-recall/internal/anticheat"
	anticheatpg "github.com/Maggotxy/cube-recall/internal/anticheat/postgres"
	"github.com/Maggotxy/cube-recall/internal/auth"
	authpg "github.com/Maggotxy/cube-recall/internal/auth/postgres"
	"github.com/Maggotxy/cube-recall/internal/config"
	"github.com/Maggotxy/cube-recall/internal/httpapi"
	"github.com/Maggotxy/cube-recall/internal/logging"
	"github.com/Maggotxy/cube-recall/internal/observability"
	"github.com/Maggotxy/cube-recall/internal/store"
	"github.com/Maggotxy/cube-recall/internal/xdg"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential server",
		Long: `Start the credential HTTP API and the observability server. The API
handles launcher registration and login, launch token exchange, and
verification calls from the game server mod.`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.String("listen-addr", def.ListenAddr, "credential API listen address")
	flags.String("metrics-addr", def.MetricsAddr, "observability server listen address")
	flags.String("database-url", def.DatabaseURL, "PostgreSQL connection string")
	flags.String("secret-key", "", "session token signing secret")
	flags.String("mod-api-key", "", "shared secret for mod-facing endpoints (empty disables the gate)")
	flags.String("admin-token", "", "bearer token for the admin surface (empty disables it)")
	flags.Int("max-accounts-per-machine", def.MaxAccountsPerMachine, "account limit per machine")
	flags.Duration("session-ttl", def.SessionTTL, "session token lifetime")
	flags.Duration("launch-token-ttl", def.LaunchTokenTTL, "launch token lifetime")
	flags.String("log-format", def.LogFormat, "log output format (json or text)")
	flags.Bool("skip-migrations", false, "skip automatic schema migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = xdg.DefaultConfigPath()
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("cuberecall", version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	skipMigrations, _ := cmd.Flags().GetBool("skip-migrations")
	if !skipMigrations {
		if err := applyMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("database connected")

	signer, err := auth.NewTokenSigner([]byte(cfg.SecretKey))
	if err != nil {
		return err
	}

	accounts := authpg.NewAccountRepository(pool)
	bindings := authpg.NewMachineBindingRepository(pool)
	sessions := authpg.NewSessionTokenRepository(pool)
	launches := authpg.NewLaunchTokenRepository(pool)
	reports := anticheatpg.NewReportRepository(pool)

	authSvc, err := auth.NewService(accounts, sessions, auth.NewBcryptHasher(), signer, auth.ServiceConfig{
		SessionTTL:            cfg.SessionTTL,
		MaxAccountsPerMachine: cfg.MaxAccountsPerMachine,
	})
	if err != nil {
		return err
	}
	launchSvc, err := auth.NewLaunchService(sessions, launches, auth.LaunchServiceConfig{
		TokenTTL: cfg.LaunchTokenTTL,
	})
	if err != nil {
		return err
	}
	adminSvc, err := auth.NewAdminService(accounts, bindings, sessions, launches, nil)
	if err != nil {
		return err
	}
	anticheatSvc, err := anticheat.NewService(reports)
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})

	apiServer, err := httpapi.NewServer(httpapi.Config{
		Addr:       cfg.ListenAddr,
		ModAPIKey:  cfg.ModAPIKey,
		AdminToken: cfg.AdminToken,
	}, authSvc, launchSvc, adminSvc, anticheatSvc, obsServer.Metrics())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").With("server", "observability").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	slog.Info("observability server started", "addr", obsServer.Addr())

	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("SERVER_START_FAILED").With("server", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")
	slog.Info("credential API started", "addr", apiServer.Addr())

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop API server cleanly", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop observability server cleanly", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func stopObservability(s *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// applyMigrations brings the schema up to date before serving.
func applyMigrations(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return err
	}
	slog.Info("schema migrations applied")
	return nil
}

// monitorServerErrors cancels the serve context when a server reports an
// error, so one failing listener brings the whole process down cleanly.
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
