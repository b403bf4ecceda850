// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

// Package postgres implements auth repository contracts over PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/peergate/peergate/internal/auth"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it too, so the repository is unit-testable without a server.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
// Email and username uniqueness is enforced by unique indexes on the
// lowercased columns; violations surface as AUTH_DUPLICATE_IDENTIFIER.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, username, password_hash, verified, locked,
	       failed_attempts, last_login_at, created_at, updated_at`

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, email, username, password_hash, verified, locked,
			failed_attempts, last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		account.ID.String(),
		account.Email,
		account.Username,
		account.PasswordHash,
		account.Verified,
		account.Locked,
		account.FailedAttempts,
		account.LastLoginAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("AUTH_DUPLICATE_IDENTIFIER").
			With("username", account.Username).
			Errorf("email or username already registered")
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByIdentifier retrieves an account whose username or email matches
// the identifier, case-insensitively. This is the authentication lookup:
// either field works.
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
	`, identifier)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("identifier", identifier).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by identifier").
			Wrap(err)
	}
	return account, nil
}

// UpdateUsername changes the username.
func (r *AccountRepository) UpdateUsername(ctx context.Context, id ulid.ULID, username string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET username = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), username)
	if isUniqueViolation(err) {
		return oops.Code("AUTH_DUPLICATE_IDENTIFIER").
			With("username", username).
			Errorf("username already taken")
	}
	return checkRowUpdated(tag, err, id, "update username")
}

// UpdatePassword replaces the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), passwordHash)
	return checkRowUpdated(tag, err, id, "update password")
}

// SetVerified sets the email-verified flag.
func (r *AccountRepository) SetVerified(ctx context.Context, id ulid.ULID, verified bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET verified = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), verified)
	return checkRowUpdated(tag, err, id, "set verified")
}

// SetLocked sets the lockout flag unconditionally.
func (r *AccountRepository) SetLocked(ctx context.Context, id ulid.ULID, locked bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET locked = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), locked)
	return checkRowUpdated(tag, err, id, "set locked")
}

// IncrementFailedAttempts adds one to the failed-login counter in a
// single statement, so concurrent failures cannot lose increments.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET failed_attempts = failed_attempts + 1, updated_at = NOW()
		WHERE id = $1
	`, id.String())
	return checkRowUpdated(tag, err, id, "increment failed attempts")
}

// RecordLogin resets the failed-login counter and sets the last-login
// timestamp in one field-set-atomic update.
func (r *AccountRepository) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET failed_attempts = 0, last_login_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id.String(), at)
	return checkRowUpdated(tag, err, id, "record login")
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1
	`, id.String())
	return checkRowUpdated(tag, err, id, "delete account")
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		account auth.Account
		idStr   string
	)
	if err := row.Scan(
		&idStr,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.Verified,
		&account.Locked,
		&account.FailedAttempts,
		&account.LastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT_ID").
			With("id", idStr).
			Wrap(err)
	}
	account.ID = id
	return &account, nil
}

func checkRowUpdated(tag pgconn.CommandTag, err error, id ulid.ULID, operation string) error {
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", operation).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
