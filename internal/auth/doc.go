// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

// Package auth implements the credential and token lifecycle for PeerGate
// accounts.
//
// # Domain Types
//
// Account is the identity record. Create it through NewAccount, which
// validates the email, username, and password hash; direct struct
// initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated values.
//
// # Services
//
// Service types coordinate domain operations:
//   - AccountService - registration, profile changes, administrative lockout
//   - CredentialService - authentication, session tokens, password change
//   - VerificationService - email verification token lifecycle
//
// Services are created with New*Service constructors that validate their
// dependencies. TokenCodec signs and verifies the purpose-discriminated
// tokens both CredentialService and VerificationService hand out.
package auth
