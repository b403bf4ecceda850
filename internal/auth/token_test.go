// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peergate/peergate/internal/auth"
	"github.com/peergate/peergate/pkg/errutil"
)

const testSecret = "test-signing-secret-for-tokens"

func newTestCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec([]byte(testSecret))
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodec_EmptySecret(t *testing.T) {
	codec, err := auth.NewTokenCodec(nil)
	require.Error(t, err)
	assert.Nil(t, codec)
}

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	codec := newTestCodec(t)
	subject := ulid.Make().String()

	token, err := codec.Issue(subject, auth.PurposeSession, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := codec.Verify(token, auth.PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, subject, got)
}

func TestTokenCodec_ExpiredToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("subject", auth.PurposeSession, -time.Minute)
	require.NoError(t, err)

	_, err = codec.Verify(token, auth.PurposeSession)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestTokenCodec_PurposeMismatch(t *testing.T) {
	codec := newTestCodec(t)

	session, err := codec.Issue("subject", auth.PurposeSession, time.Minute)
	require.NoError(t, err)
	verify, err := codec.Issue("subject", auth.PurposeVerifyEmail, time.Minute)
	require.NoError(t, err)

	// Neither purpose is accepted where the other is expected.
	_, err = codec.Verify(session, auth.PurposeVerifyEmail)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")

	_, err = codec.Verify(verify, auth.PurposeSession)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestTokenCodec_TamperedToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("subject", auth.PurposeSession, time.Minute)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = codec.Verify(tampered, auth.PurposeSession)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestTokenCodec_WrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := auth.NewTokenCodec([]byte("a-different-secret-entirely"))
	require.NoError(t, err)

	token, err := codec.Issue("subject", auth.PurposeSession, time.Minute)
	require.NoError(t, err)

	_, err = other.Verify(token, auth.PurposeSession)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
}

func TestTokenCodec_Garbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, token := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		_, err := codec.Verify(token, auth.PurposeSession)
		require.Error(t, err, "token %q should not verify", token)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_TOKEN")
	}
}

func TestTokenCodec_EmptySubject(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Issue("", auth.PurposeSession, time.Minute)
	require.Error(t, err)
}
