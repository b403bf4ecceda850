// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the PeerGate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peergate",
		Short: "PeerGate - user account and credential service",
		Long: `PeerGate is a user account service providing registration,
argon2id password authentication, JWT session tokens, email
verification, and account lockout over an HTTP API backed by
PostgreSQL.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewLockCmd())

	return cmd
}
