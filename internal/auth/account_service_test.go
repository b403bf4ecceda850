// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/peergate/peergate/internal/auth"
	"github.com/peergate/peergate/internal/auth/mocks"
	"github.com/peergate/peergate/pkg/errutil"
)

func newAccountService(t *testing.T, accounts auth.AccountRepository, hasher auth.PasswordHasher) *auth.AccountService {
	t.Helper()
	svc, err := auth.NewAccountService(accounts, hasher, auth.DefaultPasswordPolicy())
	require.NoError(t, err)
	return svc
}

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an unverified account", func(t *testing.T) {
		accounts := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc := newAccountService(t, accounts, hasher)

		hasher.On("Hash", "Abc123!@").Return("$argon2id$hash", nil)
		accounts.On("Create", ctx, mock.AnythingOfType("*auth.Account")).Return(nil)

		account, err := svc.Register(ctx, "a@x.com", "alice", "Abc123!@")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", account.Email)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, "$argon2id$hash", account.PasswordHash)
		assert.False(t, account.Verified)
	})

	t.Run("duplicate identifier propagates from the store", func(t *testing.T) {
		accounts := mocks.NewMockAccountRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc := newAccountService(t, accounts, hasher)

		hasher.On("Hash", "Abc123!@").Return("$argon2id$hash", nil)
		accounts.On("Create", ctx, mock.AnythingOfType("*auth.Account")).
			Return(oops.Code("AUTH_DUPLICATE_IDENTIFIER").Errorf("email or username already registered"))

		_, err := svc.Register(ctx, "a@x.com", "alice", "Abc123!@")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_DUPLICATE_IDENTIFIER")
	})

	t.Run("rejects invalid input before touching the store", func(t *testing.T) {
		tests := []struct {
			name     string
			email    string
			username string
			password string
			code     string
		}{
			{"bad email", "nope", "alice", "Abc123!@", "AUTH_INVALID_EMAIL"},
			{"bad username", "a@x.com", "a", "Abc123!@", "AUTH_INVALID_USERNAME"},
			{"weak password", "a@x.com", "alice", "short", "AUTH_WEAK_PASSWORD"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				accounts := mocks.NewMockAccountRepository(t)
				hasher := mocks.NewMockPasswordHasher(t)
				svc := newAccountService(t, accounts, hasher)

				_, err := svc.Register(ctx, tt.email, tt.username, tt.password)
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.code)
				accounts.AssertNotCalled(t, "Create", ctx, mock.Anything)
			})
		}
	})
}

func TestAccountService_ChangeUsername(t *testing.T) {
	ctx := context.Background()
	accounts := mocks.NewMockAccountRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc := newAccountService(t, accounts, hasher)

	id := ulid.Make()
	accounts.On("UpdateUsername", ctx, id, "newname").Return(nil)

	require.NoError(t, svc.ChangeUsername(ctx, id, "newname"))

	err := svc.ChangeUsername(ctx, id, "!")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")
}

func TestAccountService_LockUnlock(t *testing.T) {
	ctx := context.Background()
	accounts := mocks.NewMockAccountRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc := newAccountService(t, accounts, hasher)

	id := ulid.Make()
	accounts.On("SetLocked", ctx, id, true).Return(nil)
	accounts.On("SetLocked", ctx, id, false).Return(nil)

	require.NoError(t, svc.Lock(ctx, id))
	require.NoError(t, svc.Unlock(ctx, id))
}

func TestAccountService_PublicProfile(t *testing.T) {
	ctx := context.Background()
	accounts := mocks.NewMockAccountRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc := newAccountService(t, accounts, hasher)

	account := verifiedAccount(t)
	accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	profile, err := svc.PublicProfile(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, profile.ID)
	assert.Equal(t, "alice", profile.Username)

	missing := ulid.Make()
	accounts.On("GetByID", ctx, missing).Return(nil, auth.ErrNotFound)
	_, err = svc.PublicProfile(ctx, missing)
	require.ErrorIs(t, err, auth.ErrNotFound)
}
