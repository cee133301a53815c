package config

import (
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	sanitized.Server.HTTP.AdminToken = maskSecret(cfg.Server.HTTP.AdminToken)
	sanitized.Telegram.BotToken = maskSecret(cfg.Telegram.BotToken)
	sanitized.Storage.Redis.Password = maskSecret(cfg.Storage.Redis.Password)
	sanitized.Storage.Postgres.DSN = redactDSN(cfg.Storage.Postgres.DSN)

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// redactDSN hides the password of a URL-style DSN.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}
