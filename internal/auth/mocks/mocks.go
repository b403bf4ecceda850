// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

// Package mocks provides testify mocks for the auth package's collaborator
// contracts.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/peergate/peergate/internal/auth"
)

// MockAccountRepository mocks auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a MockAccountRepository whose
// expectations are asserted on test cleanup.
func NewMockAccountRepository(t *testing.T) *MockAccountRepository {
	t.Helper()
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*auth.Account, error) {
	args := m.Called(ctx, identifier)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountRepository) UpdateUsername(ctx context.Context, id ulid.ULID, username string) error {
	return m.Called(ctx, id, username).Error(0)
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockAccountRepository) SetVerified(ctx context.Context, id ulid.ULID, verified bool) error {
	return m.Called(ctx, id, verified).Error(0)
}

func (m *MockAccountRepository) SetLocked(ctx context.Context, id ulid.ULID, locked bool) error {
	return m.Called(ctx, id, locked).Error(0)
}

func (m *MockAccountRepository) IncrementFailedAttempts(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccountRepository) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations
// are asserted on test cleanup.
func NewMockPasswordHasher(t *testing.T) *MockPasswordHasher {
	t.Helper()
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockNotifier mocks auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a MockNotifier whose expectations are asserted
// on test cleanup.
func NewMockNotifier(t *testing.T) *MockNotifier {
	t.Helper()
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) SendVerification(ctx context.Context, email, link string) error {
	return m.Called(ctx, email, link).Error(0)
}
