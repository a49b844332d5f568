// Package main provides canvasctl, a local CLI over the canvas graph store.
// It runs the same command and query buses as the API against a SQLite
// file, which makes it handy for seeding data and inspecting exports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"canvas-backend/infrastructure/config"
	"canvas-backend/infrastructure/di"
)

var (
	dbPath   string
	userID   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "canvasctl",
	Short: "Inspect and edit canvas graphs from the command line",
	Long: `canvasctl works directly on a canvas SQLite database.

Examples:
  canvasctl graph create --name "Research"
  canvasctl node create --graph <id> --type text --title "Notes" --text "..."
  canvasctl link --graph <id> --source <node> --target <node>
  canvasctl export --session <id> --format diagram`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "canvas.db", "Path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "User that owns created graphs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(graphCmd, nodeCmd, sessionCmd, linkCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withContainer opens the store, runs fn and closes everything again
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = dbPath
	cfg.LogLevel = logLevel
	cfg.EventBusName = ""
	cfg.RedisAddr = ""

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = container.Logger.Sync() }()

	return fn(ctx, container)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
