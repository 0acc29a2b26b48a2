// Package main applies the database migrations with goose.
// Usage: migrate up
//        migrate down
//        migrate status
package main

import (
	"fmt"
	"os"
	"os/exec"

	"stockledger/internal/config"
)

const migrationsDir = "db/migrations"

var commands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"down":      true,
	"redo":      true,
	"reset":     true,
	"status":    true,
	"version":   true,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "help", "--help", "-h":
		printUsage()
		return
	}
	if !commands[command] {
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorageDriver != config.DriverPostgres {
		fmt.Printf("Error: migrations need STORAGE_DRIVER=%s, got %s\n", config.DriverPostgres, cfg.StorageDriver)
		os.Exit(1)
	}

	dir := migrationsDir
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		dir = v
	}

	cmd := exec.Command("goose", "-dir", dir, "postgres", cfg.DatabaseURL, command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Printf("Migration %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`stockledger migrations

Usage:
  migrate <command>

Commands:
  up         Apply every pending migration
  up-by-one  Apply the next pending migration
  down       Roll back the latest migration
  redo       Roll back and reapply the latest migration
  reset      Roll back every migration
  status     Print the status of every migration
  version    Print the current schema version

Environment Variables:
  DATABASE_URL    Connection string of the ledger database (required)
  MIGRATIONS_DIR  Directory of the goose migrations (default db/migrations)

Requires the goose binary on PATH:
  go install github.com/pressly/goose/v3/cmd/goose@latest`)
}
