// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/peergate/peergate/pkg/errutil"
)

// dummyPasswordHash is verified against when the identifier matches no
// account, so a lookup miss costs the same as a password mismatch.
// This is NOT a real credential - it can never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing uniformity, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=102400,t=2,p=8$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialConfig carries the tunables for a CredentialService.
type CredentialConfig struct {
	// AccessTokenTTL bounds session token lifetime. Zero means
	// DefaultAccessTokenTTL.
	AccessTokenTTL time.Duration

	// Lockout is the automatic lockout hook. The zero value disables it;
	// accounts then lock only through AccountService.Lock.
	Lockout LockoutPolicy

	// PasswordPolicy applies to new passwords on change. The zero value
	// falls back to DefaultPasswordPolicy.
	PasswordPolicy PasswordPolicy
}

// CredentialService orchestrates authentication decisions and lockout
// bookkeeping over an AccountRepository, PasswordHasher, and TokenCodec.
type CredentialService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	codec    *TokenCodec
	cfg      CredentialConfig
	logger   *slog.Logger
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(accounts AccountRepository, hasher PasswordHasher, codec *TokenCodec, cfg CredentialConfig) (*CredentialService, error) {
	return NewCredentialServiceWithLogger(accounts, hasher, codec, cfg, slog.Default())
}

// NewCredentialServiceWithLogger creates a CredentialService with an
// explicit logger for best-effort bookkeeping failures.
func NewCredentialServiceWithLogger(accounts AccountRepository, hasher PasswordHasher, codec *TokenCodec, cfg CredentialConfig, logger *slog.Logger) (*CredentialService, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	return &CredentialService{
		accounts: accounts,
		hasher:   hasher,
		codec:    codec,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Authenticate checks an identifier (username or email) and password and
// returns the account when the credentials are usable.
//
// Failure modes, in order:
//   - unknown identifier or wrong password: AUTH_INVALID_CREDENTIALS, with
//     no externally visible difference between the two
//   - unverified email: AUTH_UNVERIFIED_ACCOUNT (counter untouched; this
//     is not a guessing failure)
//   - locked account: AUTH_ACCOUNT_LOCKED regardless of password
//
// A wrong password increments the failed-attempt counter; the caller
// resets it with RecordLogin after a successful login so lockout policy
// stays composable.
func (s *CredentialService) Authenticate(ctx context.Context, identifier, password string) (*Account, error) {
	account, lookupErr := s.accounts.GetByIdentifier(ctx, identifier)

	// Verify against the real hash or a dummy so response time does not
	// reveal whether the identifier exists.
	targetHash := dummyPasswordHash
	exists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get account by identifier").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		exists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// Treat an unverifiable stored hash as a mismatch, not a fault.
		valid = false
	}

	if !exists || !valid {
		if exists {
			s.recordFailure(ctx, account)
		}
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid identifier or password")
	}

	if !account.Verified {
		return nil, oops.Code("AUTH_UNVERIFIED_ACCOUNT").Errorf("email address has not been verified")
	}

	if account.Locked {
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").Errorf("account is locked")
	}

	// Rehash transparently if the stored hash predates argon2id.
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			if err := s.accounts.UpdatePassword(ctx, account.ID, newHash); err != nil {
				errutil.LogError(s.logger, "password rehash not persisted", err)
			} else {
				account.PasswordHash = newHash
			}
		}
	}

	return account, nil
}

// recordFailure bumps the failure counter and applies the lockout hook.
// Both writes are best effort; authentication already failed.
func (s *CredentialService) recordFailure(ctx context.Context, account *Account) {
	if err := s.accounts.IncrementFailedAttempts(ctx, account.ID); err != nil {
		errutil.LogError(s.logger, "failed-attempt counter not persisted", err)
		return
	}
	if s.cfg.Lockout.ShouldLock(account.FailedAttempts + 1) {
		if err := s.accounts.SetLocked(ctx, account.ID, true); err != nil {
			errutil.LogError(s.logger, "automatic lockout not persisted", err)
		}
	}
}

// RecordLogin resets the failed-attempt counter and stamps the last-login
// time. Kept separate from Authenticate so callers compose lockout and
// bookkeeping policy themselves.
func (s *CredentialService) RecordLogin(ctx context.Context, id ulid.ULID) error {
	if err := s.accounts.RecordLogin(ctx, id, time.Now().UTC()); err != nil {
		return oops.Code("AUTH_RECORD_LOGIN_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return nil
}

// IssueSessionToken mints a session token for the account.
func (s *CredentialService) IssueSessionToken(id ulid.ULID) (string, error) {
	return s.codec.Issue(id.String(), PurposeSession, s.cfg.AccessTokenTTL)
}

// AccessTokenTTL reports the configured session token lifetime.
func (s *CredentialService) AccessTokenTTL() time.Duration {
	return s.cfg.AccessTokenTTL
}

// ResolveSessionToken verifies a session token and returns the account it
// belongs to. A token whose account has since been deleted is invalid,
// which is how deletion revokes outstanding tokens in practice.
func (s *CredentialService) ResolveSessionToken(ctx context.Context, token string) (*Account, error) {
	subject, err := s.codec.Verify(token, PurposeSession)
	if err != nil {
		return nil, err
	}

	id, err := ulid.Parse(subject)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_TOKEN").Errorf("token subject is not an account id")
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_INVALID_TOKEN").Errorf("token subject no longer exists")
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	return account, nil
}

// ChangePassword replaces an account's password after verifying the
// current one. The old hash is overwritten in storage and never retained.
func (s *CredentialService) ChangePassword(ctx context.Context, id ulid.ULID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_INCORRECT_PASSWORD").Errorf("current password is incorrect")
		}
		return oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}

	valid, verifyErr := s.hasher.Verify(currentPassword, account.PasswordHash)
	if verifyErr != nil || !valid {
		return oops.Code("AUTH_INCORRECT_PASSWORD").Errorf("current password is incorrect")
	}

	if err := s.cfg.PasswordPolicy.Validate(newPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, id, newHash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}
	return nil
}
