// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

// Package config loads service configuration from defaults, an optional
// YAML file, command-line flags, and a few environment fallbacks, in
// that order of precedence (later wins).
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Notifier NotifierConfig `koanf:"notifier"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Listen        string   `koanf:"listen"`
	MetricsListen string   `koanf:"metrics_listen"`
	CORSOrigins   []string `koanf:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig holds credential and token settings.
type AuthConfig struct {
	TokenSecret          string        `koanf:"token_secret"`
	AccessTokenTTL       time.Duration `koanf:"access_token_ttl"`
	VerificationTokenTTL time.Duration `koanf:"verification_token_ttl"`
	LockoutThreshold     int           `koanf:"lockout_threshold"`
	PasswordMinLength    int           `koanf:"password_min_length"`
}

// NotifierConfig selects and configures the verification transport.
// Kind is one of "smtp", "amqp", or "log".
type NotifierConfig struct {
	Kind          string     `koanf:"kind"`
	VerifyBaseURL string     `koanf:"verify_base_url"`
	SMTP          SMTPConfig `koanf:"smtp"`
	AMQP          AMQPConfig `koanf:"amqp"`
}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// AMQPConfig holds message broker settings.
type AMQPConfig struct {
	URL string `koanf:"url"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:        ":8080",
			MetricsListen: ":9090",
		},
		Auth: AuthConfig{
			AccessTokenTTL:       30 * time.Minute,
			VerificationTokenTTL: 24 * time.Hour,
			LockoutThreshold:     0,
			PasswordMinLength:    8,
		},
		Notifier: NotifierConfig{
			Kind:          "log",
			VerifyBaseURL: "http://localhost:8080/api/auth/verify-email",
			SMTP:          SMTPConfig{Port: 587},
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load builds the configuration. path may be empty to skip file loading;
// flags may be nil. Flag names use dotted koanf keys (server.listen).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "merge flags").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Auth.TokenSecret == "" {
		cfg.Auth.TokenSecret = os.Getenv("PEERGATE_TOKEN_SECRET")
	}

	return cfg, nil
}

// Validate checks settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Auth.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.token_secret is required (or set PEERGATE_TOKEN_SECRET)")
	}
	switch c.Notifier.Kind {
	case "smtp", "amqp", "log":
	default:
		return oops.Code("CONFIG_INVALID").
			With("kind", c.Notifier.Kind).
			Errorf("notifier.kind must be smtp, amqp, or log")
	}
	if c.Notifier.VerifyBaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("notifier.verify_base_url is required")
	}
	return nil
}
