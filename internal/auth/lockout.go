// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package auth

// LockoutPolicy decides when repeated authentication failures should lock
// an account. The lock itself is a persistent flag cleared only by an
// administrative unlock; the policy is a composition hook and is disabled
// at a zero threshold.
type LockoutPolicy struct {
	// Threshold is the failed-attempt count at which the account locks.
	// Zero disables automatic lockout.
	Threshold int
}

// Enabled reports whether automatic lockout is active.
func (p LockoutPolicy) Enabled() bool {
	return p.Threshold > 0
}

// ShouldLock reports whether an account with the given failure count
// should be locked.
func (p LockoutPolicy) ShouldLock(failures int) bool {
	return p.Enabled() && failures >= p.Threshold
}
