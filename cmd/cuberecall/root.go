// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the cuberecall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cuberecall",
		Short: "Cube Recall - game launcher credential server",
		Long: `Cube Recall is the credential server behind the game launcher: it
registers accounts with machine binding, issues IP-scoped session tokens,
brokers one-time launch tokens, and answers verification calls from the
game server mod.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
