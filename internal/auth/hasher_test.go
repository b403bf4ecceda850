// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peergate/peergate/internal/auth"
)

func TestArgon2idHasher_HashAndVerify(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	hash, err := hasher.Hash("correct horse battery staple 1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := hasher.Verify("correct horse battery staple 1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2idHasher_SaltedOutputDiffers(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	first, err := hasher.Hash("samepassword1")
	require.NoError(t, err)
	second, err := hasher.Hash("samepassword1")
	require.NoError(t, err)

	// Different salts, different encodings; both still verify.
	assert.NotEqual(t, first, second)
	for _, h := range []string{first, second} {
		ok, err := hasher.Verify("samepassword1", h)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestArgon2idHasher_EmptyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	_, err := hasher.Hash("")
	require.Error(t, err)
}

func TestArgon2idHasher_MalformedHashIsMismatch(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not a hash", "hunter2"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"truncated", "$argon2id$v=19$m=65536"},
		{"bad parameters", "$argon2id$v=19$m=abc,t=1,p=4$c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA"},
		{"bad digest encoding", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!"},
		{"zero threads", "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := hasher.Verify("anything", tt.hash)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestArgon2idHasher_NeedsUpgrade(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	assert.True(t, hasher.NeedsUpgrade("$2a$10$abcdefghijklmnopqrstuv"))
	assert.False(t, hasher.NeedsUpgrade("$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"))
}
