// Package cli wires the sync, export, verify, and run commands.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ytstats/config"
)

var rootCmd = &cobra.Command{
	Use:   "ytstats",
	Short: "Sync YouTube channel metadata and engagement statistics into Postgres",
	Long: `ytstats synchronizes a fixed set of YouTube channels into a relational
store, exports the stored rows to CSV and a JSON summary, and verifies
the exports against the store.`,
	SilenceUsage: true,
}

// Execute runs the CLI. A configuration error terminates with a non-zero
// exit before any work begins.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newRunCmd())
}

// newLogger builds the console logger shared by all commands.
func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// loadConfig loads and validates the configuration common to every command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
