package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/dsvmender/internal/config"
	"github.com/JonMunkholm/dsvmender/internal/core"
	"github.com/JonMunkholm/dsvmender/internal/logging"
	"github.com/JonMunkholm/dsvmender/internal/profile"
	"github.com/JonMunkholm/dsvmender/internal/store"
	"github.com/JonMunkholm/dsvmender/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"ledger", cfg.Ledger.Driver,
		"repair_max_concurrent", cfg.Repair.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := registerProfiles(cfg.Repair.ProfilesFile); err != nil {
		slog.Error("failed to register profiles", "error", err)
		os.Exit(1)
	}
	slog.Info("profiles registered", "count", core.ProfileCount(), "names", core.Names())

	ctx := context.Background()
	ledger, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		slog.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	if ledger != nil {
		defer ledger.Close()
	}

	service := core.NewService(ledger, cfg.Repair)
	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Let running repairs finish so their results reach the ledger
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for repair jobs to complete", "active", status.Active)
			if err := service.WaitForJobs(shutdownCtx); err != nil {
				slog.Warn("repair jobs did not complete in time", "error", err)
			} else {
				slog.Info("all repair jobs completed")
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// registerProfiles registers the built-in profiles, then the profiles in
// path, which replace built-ins of the same name.
func registerProfiles(path string) error {
	builtin, err := profile.Default()
	if err != nil {
		return err
	}
	if err := core.RegisterAll(builtin, false); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	custom, err := profile.Load(path)
	if err != nil {
		return err
	}
	slog.Info("loaded profile file", "path", path, "profiles", len(custom))
	return core.RegisterAll(custom, true)
}

// openLedger returns nil when no ledger is configured.
func openLedger(ctx context.Context, cfg config.LedgerConfig) (store.Ledger, error) {
	var ledger store.Ledger
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.URL, store.PoolConfig{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		ledger = pg
	case "sqlite":
		db, err := store.OpenSQLite(cfg.URL)
		if err != nil {
			return nil, err
		}
		ledger = db
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}

	if err := ledger.EnsureSchema(ctx); err != nil {
		ledger.Close()
		return nil, err
	}
	slog.Info("ledger ready", "driver", cfg.Driver)
	return ledger, nil
}
