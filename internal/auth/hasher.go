// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters. Memory-hard enough to resist offline brute force
// while keeping interactive logins under ~100ms on commodity hardware.
const (
	argon2Time    = 2          // iterations
	argon2Memory  = 100 * 1024 // 100 MB
	argon2Threads = 8          // parallelism
	argon2SaltLen = 16         // salt length in bytes
	argon2KeyLen  = 32         // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted argon2id hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the encoded hash.
	// A malformed or empty hash verifies as a mismatch, not an error.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be rehashed to argon2id.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password in PHC string format:
// $argon2id$v=19$m=102400,t=2,p=8$<salt>$<hash>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the password matches the encoded hash. The parameters
// embedded in the hash are used for recomputation, so verification keeps
// working across parameter changes. A hash that does not parse verifies
// as false with a nil error.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	params, salt, expected, ok := parseArgon2idHash(encodedHash)
	if !ok {
		return false, nil
	}

	computed := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id (e.g., a legacy
// bcrypt hash carried over from an import).
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, "$argon2id$")
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
}

// parseArgon2idHash splits a PHC-format argon2id hash into its parameters,
// salt, and digest. ok is false for anything structurally unsound.
func parseArgon2idHash(encoded string) (params argon2Params, salt, digest []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argon2Params{}, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2Params{}, nil, nil, false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return argon2Params{}, nil, nil, false
	}
	// threads must fit in uint8; reject rather than silently truncate
	if threads == 0 || threads > 255 {
		return argon2Params{}, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argon2Params{}, nil, nil, false
	}

	digest, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(digest) == 0 || len(digest) > 1<<10 {
		return argon2Params{}, nil, nil, false
	}

	return argon2Params{memory: memory, time: time, threads: uint8(threads)}, salt, digest, true
}
