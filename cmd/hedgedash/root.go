package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hedgedash/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hedgedash",
	Short: "Index futures hedge sizing and fund NAV holdings dashboard",
	Long: `hedgedash sizes short index-futures hedges for a notional amount and
collects fund NAV notices from a mailbox into a holdings summary.

Run "hedgedash serve" for the web dashboard, or use the hedge and nav
commands from a terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeSystem()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		shutdownSystem(cmd.Context())
		return nil
	},
}

// Execute runs the root command with a context canceled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (YAML); missing file means defaults")
}

// shutdownSystem flushes spans and closes the log file.
func shutdownSystem(ctx context.Context) {
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
}
