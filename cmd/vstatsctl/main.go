// main.go - Admin control tool for visitorstats
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"visitorstats/internal"
	"visitorstats/internal/analytics"
	"visitorstats/internal/settings"
	"visitorstats/internal/visits"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&APIKeyCommand{},
	&CleanupCommand{},
	&ResetCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: Cleanup error: %v", err)
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations and seeds default settings
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.Setup(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// APIKeyCommand prints or regenerates the admin API key
type APIKeyCommand struct{}

func (c *APIKeyCommand) Name() string { return "apikey" }
func (c *APIKeyCommand) Description() string {
	return "Prints the admin API key (use --regenerate to mint a new one)"
}

func (c *APIKeyCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("apikey", flag.ContinueOnError)
	regenerate := fs.Bool("regenerate", false, "replace the existing key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db := app.DBManager.GetConnection()

	var key string
	var err error
	if *regenerate {
		key, err = settings.RegenerateAdminAPIKey(db)
	} else {
		key, err = settings.GetOrCreateAdminAPIKey(db)
	}
	if err != nil {
		return fmt.Errorf("failed to obtain API key: %w", err)
	}

	fmt.Println(key)
	return nil
}

// CleanupCommand runs the retention cleanup immediately
type CleanupCommand struct{}

func (c *CleanupCommand) Name() string { return "cleanup" }
func (c *CleanupCommand) Description() string {
	return "Deletes data older than the retention period (or --days N)"
}

func (c *CleanupCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	days := fs.Int("days", 0, "override the configured retention in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *days > 0 {
		deleted, err := analytics.CleanOldData(app.DBManager.GetConnection(), app.Logger, *days)
		if err != nil {
			return err
		}
		log.Printf("Deleted %d rows older than %d days", deleted, *days)
		return nil
	}

	return app.Jobs.RunCleanupNow()
}

// ResetCommand deletes all recorded data
type ResetCommand struct{}

func (c *ResetCommand) Name() string        { return "reset" }
func (c *ResetCommand) Description() string { return "Deletes all recorded visits and behavior data" }

func (c *ResetCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 || args[0] != "--confirm" {
		return fmt.Errorf("refusing to delete data without --confirm")
	}
	return analytics.ResetAll(app.DBManager.GetConnection(), app.Logger)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()

	var visitCount int64
	if err := db.Model(&visits.Visit{}).Count(&visitCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	cfg, err := settings.Load(db)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Visits: %d", visitCount)
	log.Printf("- Tracking enabled: %s", strconv.FormatBool(cfg.TrackingEnabled))
	log.Printf("- Retention days: %d", cfg.DataRetentionDays)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// Helper functions

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: vstatsctl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
