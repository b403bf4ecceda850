// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package main

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/peergate/peergate/internal/auth"
	pgauth "github.com/peergate/peergate/internal/auth/postgres"
	"github.com/peergate/peergate/internal/store"
)

// LockDeps contains injectable dependencies for the lock command.
type LockDeps struct {
	// DatabaseFactory opens a connection pool from a database URL.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string) (Database, error)
}

// NewLockCmd creates the lock subcommand for operator intervention on
// compromised or abusive accounts.
func NewLockCmd() *cobra.Command {
	var unlock bool

	cmd := &cobra.Command{
		Use:   "lock <account-id>",
		Short: "Lock an account against login",
		Long: `Lock an account so that authentication is refused until it is
unlocked. Pass --unlock to lift an existing lock.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLockWithDeps(cmd.Context(), cmd, args[0], unlock, nil)
		},
	}

	cmd.Flags().BoolVar(&unlock, "unlock", false, "unlock the account instead")
	return cmd
}

func runLockWithDeps(ctx context.Context, cmd *cobra.Command, rawID string, unlock bool, deps *LockDeps) error {
	if deps == nil {
		deps = &LockDeps{}
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, url string) (Database, error) {
			return store.Connect(ctx, url)
		}
	}

	id, err := ulid.Parse(rawID)
	if err != nil {
		return oops.Code("INVALID_ACCOUNT_ID").
			With("id", rawID).
			Errorf("account id must be a ULID")
	}

	databaseURL, err := getDatabaseURL()
	if err != nil {
		return err
	}

	db, err := deps.DatabaseFactory(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	repo := pgauth.NewAccountRepository(db)
	accounts, err := auth.NewAccountService(repo, auth.NewArgon2idHasher(), auth.DefaultPasswordPolicy())
	if err != nil {
		return err
	}

	if unlock {
		if err := accounts.Unlock(ctx, id); err != nil {
			return err
		}
		cmd.Printf("Account %s unlocked\n", id)
		return nil
	}

	if err := accounts.Lock(ctx, id); err != nil {
		return err
	}
	cmd.Printf("Account %s locked\n", id)
	return nil
}
