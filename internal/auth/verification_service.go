// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Notifier delivers a verification link to an email address out of band.
// Implementations live in internal/notify.
type Notifier interface {
	SendVerification(ctx context.Context, email, link string) error
}

// VerificationConfig carries the tunables for a VerificationService.
type VerificationConfig struct {
	// TokenTTL bounds verification token lifetime. Zero means
	// DefaultVerificationTokenTTL (24 hours).
	TokenTTL time.Duration

	// VerifyBaseURL is the endpoint the emailed link points at; the token
	// is appended as a query parameter.
	VerifyBaseURL string
}

// VerificationService orchestrates issuance and consumption of
// email-verification tokens.
//
// Tokens are stateless: consumption flips the account's verified flag and
// is idempotent there, but no consumption record is kept, so an unexpired
// token verifies again if replayed. That is an accepted property of the
// design, not an oversight.
type VerificationService struct {
	accounts AccountRepository
	codec    *TokenCodec
	notifier Notifier
	cfg      VerificationConfig
}

// NewVerificationService creates a VerificationService.
func NewVerificationService(accounts AccountRepository, codec *TokenCodec, notifier Notifier, cfg VerificationConfig) (*VerificationService, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultVerificationTokenTTL
	}
	return &VerificationService{
		accounts: accounts,
		codec:    codec,
		notifier: notifier,
		cfg:      cfg,
	}, nil
}

// Issue mints a verification token for the account.
func (s *VerificationService) Issue(id ulid.ULID) (string, error) {
	return s.codec.Issue(id.String(), PurposeVerifyEmail, s.cfg.TokenTTL)
}

// Consume verifies a verification token and marks its account as verified.
// Consuming a token for an already-verified account is a no-op. Session
// tokens are rejected here; the purpose claim is checked before anything
// else about the account is looked at.
func (s *VerificationService) Consume(ctx context.Context, token string) (*Account, error) {
	subject, err := s.codec.Verify(token, PurposeVerifyEmail)
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

	if !account.Verified {
		if err := s.accounts.SetVerified(ctx, id, true); err != nil {
			return nil, oops.Code("AUTH_VERIFY_FAILED").
				With("operation", "set verified flag").
				Wrap(err)
		}
		account.Verified = true
	}

	return account, nil
}

// SendVerification issues a token for the account and delivers the
// verification link. Delivery failure surfaces as NOTIFY_SEND_FAILED so
// the caller can distinguish it from issuance problems and retry out of
// band; the account itself is untouched either way.
func (s *VerificationService) SendVerification(ctx context.Context, account *Account) error {
	token, err := s.Issue(account.ID)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s?token=%s", s.cfg.VerifyBaseURL, url.QueryEscape(token))
	if err := s.notifier.SendVerification(ctx, account.Email, link); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return nil
}
