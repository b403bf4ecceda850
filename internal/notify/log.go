// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes verification links to the log instead of sending
// them anywhere. Development use only.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger falls back to the
// default slog logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendVerification logs the verification link.
func (n *LogNotifier) SendVerification(ctx context.Context, email, link string) error {
	n.logger.InfoContext(ctx, "verification link issued",
		"email", email,
		"link", link)
	return nil
}
