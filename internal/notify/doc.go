// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

// Package notify delivers verification messages to account holders.
//
// Three transports implement auth.Notifier:
//
//   - SMTPNotifier sends the verification link by email.
//   - AMQPNotifier publishes a verification-requested event for a
//     downstream mailer service to consume.
//   - LogNotifier writes the link to the log, for development setups
//     without mail infrastructure.
package notify
