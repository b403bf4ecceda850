// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountService handles registration, profile changes, and administrative
// lockout. Uniqueness of email and username is enforced by the store's
// unique indexes; this service surfaces conflicts as
// AUTH_DUPLICATE_IDENTIFIER rather than pre-checking and racing.
type AccountService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	policy   PasswordPolicy
}

// NewAccountService creates an AccountService.
func NewAccountService(accounts AccountRepository, hasher PasswordHasher, policy PasswordPolicy) (*AccountService, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &AccountService{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
	}, nil
}

// Register creates a new unverified account. The password is hashed before
// anything is stored and the plaintext is not retained.
func (s *AccountService) Register(ctx context.Context, email, username, password string) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := s.policy.Validate(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(email, username, hash)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Get retrieves an account by ID.
func (s *AccountService) Get(ctx context.Context, id ulid.ULID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// FindByIdentifier retrieves an account by username or email.
func (s *AccountService) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	return s.accounts.GetByIdentifier(ctx, identifier)
}

// PublicProfile returns the fields of an account other services may see.
func (s *AccountService) PublicProfile(ctx context.Context, id ulid.ULID) (*PublicProfile, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{ID: account.ID, Username: account.Username}, nil
}

// ChangeUsername renames an account. Conflicting names surface as
// AUTH_DUPLICATE_IDENTIFIER from the repository.
func (s *AccountService) ChangeUsername(ctx context.Context, id ulid.ULID, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	return s.accounts.UpdateUsername(ctx, id, username)
}

// Lock suspends the account's ability to authenticate, independent of
// password correctness.
func (s *AccountService) Lock(ctx context.Context, id ulid.ULID) error {
	return s.setLocked(ctx, id, true)
}

// Unlock reinstates a locked account.
func (s *AccountService) Unlock(ctx context.Context, id ulid.ULID) error {
	return s.setLocked(ctx, id, false)
}

func (s *AccountService) setLocked(ctx context.Context, id ulid.ULID, locked bool) error {
	if err := s.accounts.SetLocked(ctx, id, locked); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("AUTH_SET_LOCKED_FAILED").
			With("account_id", id.String()).
			With("locked", locked).
			Wrap(err)
	}
	return nil
}

// Delete removes an account. Outstanding session tokens for it stop
// resolving immediately even though their signatures remain valid.
func (s *AccountService) Delete(ctx context.Context, id ulid.ULID) error {
	return s.accounts.Delete(ctx, id)
}
