// ABOUTME: Admin CLI for chatpilot profile, API key and credit management
// ABOUTME: Operates directly on the local state directory, no daemon required

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/chatpilot-app/chatpilot/internal/config"
	"github.com/chatpilot-app/chatpilot/internal/credits"
	"github.com/chatpilot-app/chatpilot/internal/facade"
	"github.com/chatpilot-app/chatpilot/internal/kvstore"
	"github.com/chatpilot-app/chatpilot/internal/license"
	"github.com/chatpilot-app/chatpilot/internal/logging"
	"github.com/chatpilot-app/chatpilot/internal/profile"
)

const banner = `
       _           _         _ _       _
   ___| |__   __ _| |_ _ __ (_) | ___ | |_
  / __| '_ \ / _' | __| '_ \| | |/ _ \| __|
 | (__| | | | (_| | |_| |_) | | | (_) | |_
  \___|_| |_|\__,_|\__| .__/|_|_|\___/ \__|
                      |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "profiles":
		err = cmdProfiles(args)
	case "apikeys":
		err = cmdAPIKeys(args)
	case "credits":
		err = cmdCredits()
	case "license":
		err = cmdLicense()
	case "migrate":
		err = cmdMigrate()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: chatpilot-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  profiles                    List all profiles")
	fmt.Println("  profiles create <name>      Create a new profile")
	fmt.Println("  profiles duplicate <id>     Duplicate a profile")
	fmt.Println("  profiles delete <id>        Delete a profile")
	fmt.Println("  profiles use <id>           Set the active profile")
	fmt.Println("  apikeys                     List issued API keys")
	fmt.Println("  apikeys create <name>       Issue a new API key")
	fmt.Println("  apikeys revoke <id>         Revoke an API key")
	fmt.Println("  credits                     Show the monthly credit status")
	fmt.Println("  license                     Show the cached license")
	fmt.Println("  migrate                     Run the one-time legacy migration")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  CHATPILOT_CONFIG            Config file path (default: ~/.config/chatpilot/config.yaml)")
}

// openStore loads config and opens the local state database.
func openStore() (*config.Config, *kvstore.SQLiteStore, error) {
	path := os.Getenv("CHATPILOT_CONFIG")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".config", "chatpilot", "config.yaml")
	}

	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, nil, err
	}
	logging.Setup("warn", cfg.Logging.Format)

	store, err := kvstore.NewSQLiteStore(filepath.Join(cfg.StateDir, "state.db"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func cmdProfiles(args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	profiles := profile.NewStore(store)

	if len(args) == 0 || args[0] == "list" {
		infos := profiles.ListProfiles(ctx)
		if len(infos) == 0 {
			fmt.Println("No profiles. Run: chatpilot-admin migrate")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED\tACTIVE")
		for _, info := range infos {
			active := ""
			if info.IsActive {
				active = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Name, info.CreatedAt.Format("2006-01-02"), active)
		}
		return w.Flush()
	}

	switch args[0] {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: profiles create <name>")
		}
		p, err := profiles.CreateProfile(ctx, args[1])
		if err != nil {
			return err
		}
		color.Green("Created profile %s (%s)", p.Name, p.ID)
		return nil
	case "duplicate":
		if len(args) < 2 {
			return fmt.Errorf("usage: profiles duplicate <id> [name]")
		}
		name := ""
		if len(args) > 2 {
			name = args[2]
		}
		p, err := profiles.DuplicateProfile(ctx, args[1], name)
		if err != nil {
			return err
		}
		color.Green("Duplicated into %s (%s)", p.Name, p.ID)
		return nil
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: profiles delete <id>")
		}
		if err := profiles.DeleteProfile(ctx, args[1]); err != nil {
			return err
		}
		color.Green("Deleted profile %s", args[1])
		return nil
	case "use":
		if len(args) < 2 {
			return fmt.Errorf("usage: profiles use <id>")
		}
		if err := profiles.SetActiveProfile(ctx, args[1]); err != nil {
			return err
		}
		color.Green("Active profile is now %s", args[1])
		return nil
	default:
		return fmt.Errorf("unknown profiles subcommand: %s", args[0])
	}
}

func cmdAPIKeys(args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	keys := facade.NewKeyStore(store)

	if len(args) == 0 || args[0] == "list" {
		list, err := keys.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No API keys issued.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED\tLAST USED")
		for _, key := range list {
			lastUsed := "never"
			if key.LastUsed != nil {
				lastUsed = key.LastUsed.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key.ID, key.Name, key.CreatedAt.Format("2006-01-02"), lastUsed)
		}
		return w.Flush()
	}

	switch args[0] {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: apikeys create <name>")
		}
		key, plaintext, err := keys.Create(ctx, args[1])
		if err != nil {
			return err
		}
		color.Green("Issued API key %s (%s)", key.Name, key.ID)
		fmt.Println()
		fmt.Println("Store this key now; it will not be shown again:")
		color.Yellow("  %s", plaintext)
		return nil
	case "revoke":
		if len(args) < 2 {
			return fmt.Errorf("usage: apikeys revoke <id>")
		}
		if err := keys.Revoke(ctx, args[1]); err != nil {
			return err
		}
		color.Green("Revoked API key %s", args[1])
		return nil
	default:
		return fmt.Errorf("unknown apikeys subcommand: %s", args[0])
	}
}

func cmdCredits() error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	meter := credits.NewMeter(store)

	status := meter.GetStatus(ctx)
	fmt.Printf("Month:     %s\n", status.Month)
	fmt.Printf("Used:      %d / %d\n", status.Used, credits.MonthlyAllowance)
	fmt.Printf("Remaining: %d\n", status.Remaining)

	if warning := meter.CheckWarning(ctx); warning.Warning {
		if warning.Level == "critical" {
			color.Red(warning.Message)
		} else {
			color.Yellow(warning.Message)
		}
	}
	return nil
}

func cmdLicense() error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	profiles := profile.NewStore(store)
	billing := license.NewHTTPBillingClient(cfg.Billing.BaseURL, cfg.Billing.InstallID, cfg.Billing.Timeout)
	cache := license.NewCache(store, billing, profiles)

	lic := cache.Init(ctx)
	fmt.Printf("Tier:      %s\n", lic.Tier)
	fmt.Printf("Paid:      %t\n", lic.Paid)
	if lic.TrialActive && lic.TrialEndsAt != nil {
		color.Yellow("Trial active until %s", lic.TrialEndsAt.Format("2006-01-02"))
	}
	if lic.Email != "" {
		fmt.Printf("Email:     %s\n", lic.Email)
	}
	fmt.Printf("Cached at: %s\n", lic.CachedAt.Format(time.RFC3339))
	return nil
}

func cmdMigrate() error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	profiles := profile.NewStore(store)
	migrated, err := profiles.MigrateLegacy(context.Background())
	if err != nil {
		return err
	}
	if migrated {
		color.Green("Migrated legacy settings into the default profile")
	} else {
		fmt.Println("Nothing to migrate; profiles already exist.")
	}
	return nil
}
