// ABOUTME: Entry point for the gate-console operator CLI
// ABOUTME: Cobra root command, shared config loading, and subcommand registration

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/gate-console/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
              _                                       _
  __ _  __ _| |_ ___        ___ ___  _ __  ___  ___ | | ___
 / _' |/ _' | __/ _ \_____ / __/ _ \| '_ \/ __|/ _ \| |/ _ \
| (_| | (_| | ||  __/_____| (_| (_) | | | \__ \ (_) | |  __/
 \__, |\__,_|\__\___|      \___\___/|_| |_|___/\___/|_|\___|
 |___/
`

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gate-console <command>",
	Short:         "Operator console for parking gate help calls",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file (YAML or TOML)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "console", Title: "Console:"},
		&cobra.Group{ID: "inspect", Title: "Inspect:"},
	)
	cobra.EnableCommandSorting = false

	serveCmd.GroupID = "console"
	agentCmd.GroupID = "console"
	pingCmd.GroupID = "inspect"
	categoriesCmd.GroupID = "inspect"
	callsCmd.GroupID = "inspect"
	issuesCmd.GroupID = "inspect"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(callsCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gate-console %s\n", version)
	},
}

// loadConfig reads the file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}
