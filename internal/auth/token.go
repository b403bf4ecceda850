// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// TokenPurpose discriminates what a signed token may be used for. A token
// issued for one purpose is never accepted where another is expected.
type TokenPurpose string

// Token purposes.
const (
	PurposeSession     TokenPurpose = "session"
	PurposeVerifyEmail TokenPurpose = "verify_email"
)

// Default token lifetimes. Both are configurable; these are the fallbacks.
const (
	DefaultAccessTokenTTL       = 30 * time.Minute
	DefaultVerificationTokenTTL = 24 * time.Hour
)

// TokenCodec signs and verifies compact, expiring, claims-bearing tokens
// (JWT, HS256). It is stateless; the symmetric secret is process-wide
// configuration and never appears in a token.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a TokenCodec with the given signing secret.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, oops.Code("AUTH_SECRET_EMPTY").Errorf("token signing secret cannot be empty")
	}
	return &TokenCodec{secret: secret}, nil
}

// tokenClaims carries the subject and expiry plus the purpose discriminator.
type tokenClaims struct {
	Purpose string `json:"type"`
	jwt.RegisteredClaims
}

// Issue produces a signed token for the subject with the given purpose,
// expiring ttl from now.
func (c *TokenCodec) Issue(subject string, purpose TokenPurpose, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", oops.Code("AUTH_TOKEN_SUBJECT_EMPTY").Errorf("token subject cannot be empty")
	}

	now := time.Now()
	claims := tokenClaims{
		Purpose: string(purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks the token's signature, structure, and expiry, and that its
// purpose matches want. On success it returns the token's subject. All
// failure modes collapse into a single AUTH_INVALID_TOKEN error so callers
// cannot distinguish a forged token from an expired one.
func (c *TokenCodec) Verify(token string, want TokenPurpose) (string, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", oops.Code("AUTH_INVALID_TOKEN").Errorf("token is malformed, expired, or incorrectly signed")
	}
	if claims.Purpose != string(want) {
		return "", oops.Code("AUTH_INVALID_TOKEN").
			With("want", string(want)).
			Errorf("token purpose mismatch")
	}
	if claims.Subject == "" {
		return "", oops.Code("AUTH_INVALID_TOKEN").Errorf("token has no subject")
	}
	return claims.Subject, nil
}
