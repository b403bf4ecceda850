// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

// Package httpapi exposes the account and credential services over
// HTTP. Routes are served by chi; errors carry oops codes that map to
// HTTP statuses in one place.
package httpapi
