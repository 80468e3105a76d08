package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/postgres"
	"github.com/otomatty/saedgewell-sample-sub003/internal/config"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
)

// runAdmin dispatches admin subcommands (list-targets, set-credential,
// reap-runs, migrate-down).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "list-targets":
		return runAdminListTargets(args[1:])
	case "set-credential":
		return runAdminSetCredential(args[1:])
	case "reap-runs":
		return runAdminReapRuns(args[1:])
	case "migrate-down":
		return runAdminMigrateDown(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: syncd admin <command> [options]

Commands:
  list-targets     List all registered sync targets
  set-credential   Set a per-target credential override
  reap-runs        Mark long-running processing runs as errored
  migrate-down     Roll back database migrations
  help             Show this help message

Examples:
  syncd admin list-targets
  syncd admin set-credential --target 6f3a...
  syncd admin reap-runs --older-than 2h
  syncd admin migrate-down --steps 1
`)
}

func loadAdminStore() (*postgres.Store, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return postgres.NewStore(pool), cfg, pool.Close, nil
}

func runAdminListTargets(args []string) error {
	fs := flag.NewFlagSet("list-targets", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, _, cleanup, err := loadAdminStore()
	if err != nil {
		return err
	}
	defer cleanup()

	targets, err := store.ListTargets(context.Background())
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Println("No targets found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tKIND\tSOURCE_REF\tAUTO_SYNC\tITEMS\tLAST_SYNCED")
	for i := range targets {
		last := "never"
		if targets[i].LastSyncedAt != nil {
			last = targets[i].LastSyncedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t%s\n",
			targets[i].ID, targets[i].Name, targets[i].Kind, targets[i].SourceRef,
			targets[i].AutoSync, targets[i].TotalItems, last)
	}
	return w.Flush()
}

func runAdminSetCredential(args []string) error {
	fs := flag.NewFlagSet("set-credential", flag.ContinueOnError)
	targetID := fs.String("target", "", "target ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *targetID == "" {
		return fmt.Errorf("--target is required")
	}

	cred, err := promptSecret("Credential: ")
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}

	store, _, cleanup, err := loadAdminStore()
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := store.UpdateTargetSettings(context.Background(), *targetID, target.SettingsUpdate{
		Credential: &cred,
	})
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Credential updated for %s (%s)\n", t.Name, t.ID)
	return nil
}

func runAdminReapRuns(args []string) error {
	fs := flag.NewFlagSet("reap-runs", flag.ContinueOnError)
	olderThan := fs.Duration("older-than", 2*time.Hour, "reap processing runs older than this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, _, cleanup, err := loadAdminStore()
	if err != nil {
		return err
	}
	defer cleanup()

	cutoff := time.Now().Add(-*olderThan)
	n, err := store.ReapStaleRuns(context.Background(), cutoff, "run abandoned by operator")
	if err != nil {
		return fmt.Errorf("reap runs: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Reaped %d stale run(s)\n", n)
	return nil
}

func runAdminMigrateDown(args []string) error {
	fs := flag.NewFlagSet("migrate-down", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

// promptSecret reads a value from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
