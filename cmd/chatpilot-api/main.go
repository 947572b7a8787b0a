// ABOUTME: Entry point for the chatpilot HTTP control API daemon
// ABOUTME: Owns startup initialization of the vault and legacy migration

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatpilot-app/chatpilot/internal/analytics"
	"github.com/chatpilot-app/chatpilot/internal/config"
	"github.com/chatpilot-app/chatpilot/internal/credits"
	"github.com/chatpilot-app/chatpilot/internal/facade"
	"github.com/chatpilot-app/chatpilot/internal/kvstore"
	"github.com/chatpilot-app/chatpilot/internal/license"
	"github.com/chatpilot-app/chatpilot/internal/logging"
	"github.com/chatpilot-app/chatpilot/internal/profile"
	"github.com/chatpilot-app/chatpilot/internal/vault"
)

// getConfigPath returns the path to the chatpilot config file.
// Priority: CHATPILOT_CONFIG env var > XDG_CONFIG_HOME/chatpilot/config.yaml > ~/.config/chatpilot/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHATPILOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chatpilot", "config.yaml")
}

// loadConfig loads the config file, falling back to defaults when none exists.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return cfg, err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := kvstore.NewSQLiteStore(filepath.Join(cfg.StateDir, "state.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Startup initialization: exactly one process runs first-run steps before
	// serving, so vault key generation and legacy migration have a single writer.
	if _, err := vault.Open(ctx, store); err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}

	profiles := profile.NewStore(store)
	if migrated, err := profiles.MigrateLegacy(ctx); err != nil {
		return fmt.Errorf("migrating legacy settings: %w", err)
	} else if migrated {
		slog.Info("migrated legacy settings")
	}

	billing := license.NewHTTPBillingClient(cfg.Billing.BaseURL, cfg.Billing.InstallID, cfg.Billing.Timeout)
	cache := license.NewCache(store, billing, profiles)
	meter := credits.NewMeter(store)
	stats := analytics.NewStore(store)
	keys := facade.NewKeyStore(store)

	var issuer *facade.JWTIssuer
	if cfg.HTTP.JWTSecret != "" {
		issuer = facade.NewJWTIssuer([]byte(cfg.HTTP.JWTSecret))
	} else {
		slog.Warn("no jwt_secret configured, token exchange disabled")
	}

	svc := facade.NewService(profiles, cache, meter, stats)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           facade.NewServer(svc, keys, issuer, cfg.HTTP.RateLimitRPS).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("control API listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
