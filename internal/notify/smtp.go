// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/samber/oops"
)

// SMTPConfig holds mail server settings for SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends verification links by email over SMTP. Plain auth
// is used when a username is configured, otherwise the send is
// unauthenticated (local relays, mailhog).
type SMTPNotifier struct {
	cfg SMTPConfig
	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}, nil
}

// SendVerification emails the verification link to the given address.
func (n *SMTPNotifier) SendVerification(ctx context.Context, email, link string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("transport", "smtp").Wrap(err)
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, fmt.Sprintf("%d", n.cfg.Port))
	msg := verificationMessage(n.cfg.From, email, link)

	if err := n.send(addr, auth, n.cfg.From, []string{email}, msg); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("transport", "smtp").
			With("host", n.cfg.Host).
			Wrap(err)
	}
	return nil
}

// verificationMessage builds the RFC 5322 message body for a
// verification email.
func verificationMessage(from, to, link string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Verify your email address\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Welcome! Please confirm your email address by opening the link below.\r\n")
	b.WriteString("\r\n")
	b.WriteString(link + "\r\n")
	b.WriteString("\r\n")
	b.WriteString("The link expires in 24 hours. If you did not create an account, ignore this message.\r\n")
	return []byte(b.String())
}
