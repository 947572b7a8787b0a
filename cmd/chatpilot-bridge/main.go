// ABOUTME: Entry point for the chatpilot local command bridge
// ABOUTME: Serves framed JSON operations over stdin/stdout for a trusted local caller

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

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

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(getConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default()
	}
	if err != nil {
		return err
	}
	// Stdout carries frames; logging.Setup writes to stderr.
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := kvstore.NewSQLiteStore(filepath.Join(cfg.StateDir, "state.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if _, err := vault.Open(ctx, store); err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}

	profiles := profile.NewStore(store)
	billing := license.NewHTTPBillingClient(cfg.Billing.BaseURL, cfg.Billing.InstallID, cfg.Billing.Timeout)
	cache := license.NewCache(store, billing, profiles)
	meter := credits.NewMeter(store)
	stats := analytics.NewStore(store)

	svc := facade.NewService(profiles, cache, meter, stats)
	bridge := facade.NewBridge(svc, os.Stdin, os.Stdout)

	err = bridge.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
