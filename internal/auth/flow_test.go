// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peergate/peergate/internal/auth"
	"github.com/peergate/peergate/pkg/errutil"
)

// memoryAccountRepository is an in-memory AccountRepository for exercising
// the full registration/verification/login flow without a database.
type memoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*auth.Account
}

func newMemoryAccountRepository() *memoryAccountRepository {
	return &memoryAccountRepository{accounts: make(map[ulid.ULID]*auth.Account)}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, account.Email) || strings.EqualFold(existing.Username, account.Username) {
			return oops.Code("AUTH_DUPLICATE_IDENTIFIER").Errorf("email or username already registered")
		}
	}
	clone := *account
	r.accounts[account.ID] = &clone
	return nil
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *memoryAccountRepository) GetByIdentifier(_ context.Context, identifier string) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, identifier) || strings.EqualFold(account.Username, identifier) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memoryAccountRepository) update(id ulid.ULID, fn func(*auth.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(account)
	account.UpdatedAt = time.Now()
	return nil
}

func (r *memoryAccountRepository) UpdateUsername(_ context.Context, id ulid.ULID, username string) error {
	return r.update(id, func(a *auth.Account) { a.Username = username })
}

func (r *memoryAccountRepository) UpdatePassword(_ context.Context, id ulid.ULID, hash string) error {
	return r.update(id, func(a *auth.Account) { a.PasswordHash = hash })
}

func (r *memoryAccountRepository) SetVerified(_ context.Context, id ulid.ULID, verified bool) error {
	return r.update(id, func(a *auth.Account) { a.Verified = verified })
}

func (r *memoryAccountRepository) SetLocked(_ context.Context, id ulid.ULID, locked bool) error {
	return r.update(id, func(a *auth.Account) { a.Locked = locked })
}

func (r *memoryAccountRepository) IncrementFailedAttempts(_ context.Context, id ulid.ULID) error {
	return r.update(id, func(a *auth.Account) { a.FailedAttempts++ })
}

func (r *memoryAccountRepository) RecordLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(a *auth.Account) {
		a.FailedAttempts = 0
		a.LastLoginAt = &at
	})
}

func (r *memoryAccountRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

// discardNotifier records the last link instead of delivering it.
type discardNotifier struct {
	lastEmail string
	lastLink  string
}

func (n *discardNotifier) SendVerification(_ context.Context, email, link string) error {
	n.lastEmail = email
	n.lastLink = link
	return nil
}

// TestAccountLifecycle walks the whole flow: register, duplicate
// registration, login before verification, verification, login, lockout.
func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryAccountRepository()
	hasher := auth.NewArgon2idHasher()
	codec := newTestCodec(t)

	accountSvc, err := auth.NewAccountService(repo, hasher, auth.DefaultPasswordPolicy())
	require.NoError(t, err)
	credentialSvc, err := auth.NewCredentialService(repo, hasher, codec, auth.CredentialConfig{})
	require.NoError(t, err)
	verificationSvc, err := auth.NewVerificationService(repo, codec, &discardNotifier{}, auth.VerificationConfig{
		VerifyBaseURL: "https://example.com/verify-email",
	})
	require.NoError(t, err)

	// Registration succeeds once.
	account, err := accountSvc.Register(ctx, "a@x.com", "alice", "Abc123!@")
	require.NoError(t, err)

	// Same email again conflicts, as does the same username.
	_, err = accountSvc.Register(ctx, "a@x.com", "alice2", "Abc123!@")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_DUPLICATE_IDENTIFIER")
	_, err = accountSvc.Register(ctx, "b@x.com", "alice", "Abc123!@")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_DUPLICATE_IDENTIFIER")

	// Correct password before verification is rejected.
	_, err = credentialSvc.Authenticate(ctx, "alice", "Abc123!@")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_UNVERIFIED_ACCOUNT")

	// A wrong guess bumps the counter.
	_, err = credentialSvc.Authenticate(ctx, "alice", "wrong-guess1")
	require.Error(t, err)
	stored, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailedAttempts)

	// Consume a verification token; the flag flips.
	token, err := verificationSvc.Issue(account.ID)
	require.NoError(t, err)
	verified, err := verificationSvc.Consume(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	// Login now succeeds; the explicit bookkeeping call resets the
	// counter and stamps the login time.
	authed, err := credentialSvc.Authenticate(ctx, "a@x.com", "Abc123!@")
	require.NoError(t, err)
	require.NoError(t, credentialSvc.RecordLogin(ctx, authed.ID))

	stored, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedAttempts)
	require.NotNil(t, stored.LastLoginAt)

	// Session token round trip.
	sessionToken, err := credentialSvc.IssueSessionToken(authed.ID)
	require.NoError(t, err)
	resolved, err := credentialSvc.ResolveSessionToken(ctx, sessionToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, resolved.ID)

	// Locking the account blocks the correct password.
	require.NoError(t, accountSvc.Lock(ctx, account.ID))
	_, err = credentialSvc.Authenticate(ctx, "alice", "Abc123!@")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")

	// Unlocking restores access.
	require.NoError(t, accountSvc.Unlock(ctx, account.ID))
	_, err = credentialSvc.Authenticate(ctx, "alice", "Abc123!@")
	require.NoError(t, err)

	// Deleting the account invalidates outstanding session tokens.
	require.NoError(t, accountSvc.Delete(ctx, account.ID))
	_, err = credentialSvc.ResolveSessionToken(ctx, sessionToken)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}
