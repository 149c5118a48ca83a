// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/plugforge/plugforge/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the plugforge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugforge",
		Short: "plugforge - a polyglot plugin runtime and package manager",
		Long: `plugforge discovers, validates, loads, links, and runs plugins
written in many source languages, and manages the packages that
distribute them.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newUninstallCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDiagnoseCmd())

	return cmd
}

// loadConfig resolves the merged configuration for a command invocation.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	return config.Load(configFile, flags)
}
