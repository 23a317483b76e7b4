// Package cmd provides the CLI commands for pressroom.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pressroom-io/pressroom/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pressroom",
	Short: "Pressroom - action dispatch and permission layer",
	Long: `Pressroom is the action dispatch and permission-resolution service
for a role-based content publishing platform.

An LLM agent (or the UI itself) dispatches actions such as publishing an
article or assigning a role; pressroom resolves the caller's topic-scoped
permissions, executes allowed actions exactly once, and records every
decision in an audit trail.

Quick start:
  1. Create a config file: pressroom.yaml
  2. Run: pressroom serve

Configuration:
  Config is loaded from pressroom.yaml in the current directory,
  $HOME/.pressroom/, or /etc/pressroom/.

  Environment variables can override config values with the PRESSROOM_ prefix.
  Example: PRESSROOM_SERVER_PORT=9090

Commands:
  serve       Start the dispatch server
  actions     Print the action permission table
  hash-key    Generate a hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pressroom.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
