// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package httpapi

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/peergate/peergate/internal/auth"
)

// memRepo is an in-memory auth.AccountRepository for handler tests.
type memRepo struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*auth.Account
}

func newMemRepo() *memRepo {
	return &memRepo{accounts: make(map[ulid.ULID]*auth.Account)}
}

func (r *memRepo) Create(_ context.Context, account *auth.Account) error {
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

func (r *memRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *memRepo) GetByIdentifier(_ context.Context, identifier string) (*auth.Account, error) {
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

func (r *memRepo) update(id ulid.ULID, fn func(*auth.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(account)
	return nil
}

func (r *memRepo) UpdateUsername(_ context.Context, id ulid.ULID, username string) error {
	r.mu.Lock()
	for _, existing := range r.accounts {
		if existing.ID != id && strings.EqualFold(existing.Username, username) {
			r.mu.Unlock()
			return oops.Code("AUTH_DUPLICATE_IDENTIFIER").Errorf("username already taken")
		}
	}
	r.mu.Unlock()
	return r.update(id, func(a *auth.Account) { a.Username = username })
}

func (r *memRepo) UpdatePassword(_ context.Context, id ulid.ULID, hash string) error {
	return r.update(id, func(a *auth.Account) { a.PasswordHash = hash })
}

func (r *memRepo) SetVerified(_ context.Context, id ulid.ULID, verified bool) error {
	return r.update(id, func(a *auth.Account) { a.Verified = verified })
}

func (r *memRepo) SetLocked(_ context.Context, id ulid.ULID, locked bool) error {
	return r.update(id, func(a *auth.Account) { a.Locked = locked })
}

func (r *memRepo) IncrementFailedAttempts(_ context.Context, id ulid.ULID) error {
	return r.update(id, func(a *auth.Account) { a.FailedAttempts++ })
}

func (r *memRepo) RecordLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(a *auth.Account) {
		a.FailedAttempts = 0
		a.LastLoginAt = &at
	})
}

func (r *memRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

// fakeHasher trades hashing strength for test speed.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain:" + password, nil
}

func (fakeHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain:"+password, nil
}

func (fakeHasher) NeedsUpgrade(string) bool { return false }

// captureNotifier records sends and can be told to fail.
type captureNotifier struct {
	mu    sync.Mutex
	sends []capturedSend
	fail  bool
}

type capturedSend struct {
	email string
	link  string
}

func (n *captureNotifier) SendVerification(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return oops.Code("NOTIFY_SEND_FAILED").Errorf("mail relay unavailable")
	}
	n.sends = append(n.sends, capturedSend{email: email, link: link})
	return nil
}

func (n *captureNotifier) last() (capturedSend, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sends) == 0 {
		return capturedSend{}, false
	}
	return n.sends[len(n.sends)-1], true
}

// testEnv bundles a wired server with handles to its internals.
type testEnv struct {
	server       *Server
	repo         *memRepo
	notifier     *captureNotifier
	accounts     *auth.AccountService
	credentials  *auth.CredentialService
	verification *auth.VerificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newMemRepo()
	hasher := fakeHasher{}
	notifier := &captureNotifier{}

	codec, err := auth.NewTokenCodec([]byte("test-secret-please-rotate"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	accounts, err := auth.NewAccountService(repo, hasher, auth.DefaultPasswordPolicy())
	if err != nil {
		t.Fatalf("account service: %v", err)
	}

	credentials, err := auth.NewCredentialService(repo, hasher, codec, auth.CredentialConfig{
		AccessTokenTTL: 30 * time.Minute,
		Lockout:        auth.LockoutPolicy{Threshold: 0},
		PasswordPolicy: auth.DefaultPasswordPolicy(),
	})
	if err != nil {
		t.Fatalf("credential service: %v", err)
	}

	verification, err := auth.NewVerificationService(repo, codec, notifier, auth.VerificationConfig{
		TokenTTL:      24 * time.Hour,
		VerifyBaseURL: "https://peergate.example.com/api/auth/verify-email",
	})
	if err != nil {
		t.Fatalf("verification service: %v", err)
	}

	server, err := NewServer(Config{Listen: "127.0.0.1:0"}, accounts, credentials, verification,
		slog.New(slog.DiscardHandler), nil)
	if err != nil {
		t.Fatalf("server: %v", err)
	}

	return &testEnv{
		server:       server,
		repo:         repo,
		notifier:     notifier,
		accounts:     accounts,
		credentials:  credentials,
		verification: verification,
	}
}
