// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// DefaultPasswordMinLength is the minimum password length when no policy
// is configured.
const DefaultPasswordMinLength = 8

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Account is a PeerGate identity record.
type Account struct {
	ID             ulid.ULID
	Email          string
	Username       string
	PasswordHash   string
	Verified       bool
	Locked         bool
	FailedAttempts int
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates a validated Account with defaults for a fresh
// registration: unverified, unlocked, zero failed attempts.
// The email is stored lowercased; lookups are case-insensitive either way.
func NewAccount(email, username, passwordHash string) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Account{
		ID:           ulid.Make(),
		Email:        strings.ToLower(email),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RecordFailure increments the failed-attempt counter.
func (a *Account) RecordFailure() {
	a.FailedAttempts++
	a.UpdatedAt = time.Now()
}

// RecordSuccess resets the failed-attempt counter and stamps the login time.
func (a *Account) RecordSuccess() {
	now := time.Now()
	a.FailedAttempts = 0
	a.LastLoginAt = &now
	a.UpdatedAt = now
}

// PublicProfile is the subset of an Account exposed to sibling services.
type PublicProfile struct {
	ID       ulid.ULID `json:"user_id"`
	Username string    `json:"username"`
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail checks that the address parses as a bare RFC 5322 address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is not valid")
	}
	return nil
}

// PasswordPolicy describes the minimum strength accepted for new passwords.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the policy used when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultPasswordMinLength}
}

// Validate checks a candidate password against the policy. Passwords must
// meet the minimum length and contain at least one letter and one digit.
func (p PasswordPolicy) Validate(password string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultPasswordMinLength
	}
	if len(password) < minLen {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", minLen).
			Errorf("password must be at least %d characters", minLen)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return oops.Code("AUTH_WEAK_PASSWORD").
			Errorf("password must contain at least one letter and one digit")
	}
	return nil
}

// AccountRepository manages account persistence. All update methods are
// single-row, field-set-level atomic; implementations return ErrNotFound
// (wrapped) when the target account does not exist.
type AccountRepository interface {
	// Create stores a new account. A conflicting email or username yields
	// an AUTH_DUPLICATE_IDENTIFIER error.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByIdentifier retrieves an account whose username or email matches
	// the identifier (case-insensitive).
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)

	// UpdateUsername changes the username. Conflicts yield
	// AUTH_DUPLICATE_IDENTIFIER.
	UpdateUsername(ctx context.Context, id ulid.ULID, username string) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetVerified sets the email-verified flag.
	SetVerified(ctx context.Context, id ulid.ULID, verified bool) error

	// SetLocked sets the lockout flag unconditionally.
	SetLocked(ctx context.Context, id ulid.ULID, locked bool) error

	// IncrementFailedAttempts adds one to the failed-login counter.
	IncrementFailedAttempts(ctx context.Context, id ulid.ULID) error

	// RecordLogin resets the failed-login counter and sets the last-login
	// timestamp.
	RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}
