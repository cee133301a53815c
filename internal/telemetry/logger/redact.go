// Package logger provides structured logging for FileLink.
package logger

import (
	"log/slog"
	"regexp"
	"strings"
)

// Keys whose values are dropped entirely.
var secretKeyPatterns = []string{
	"password",
	"secret",
	"bot_token",
	"admin_token",
	"credential",
	"authorization",
	"bearer",
	"dsn",
}

// Keys whose values are link tokens. They keep a short hint for correlation.
var linkTokenKeys = []string{
	"token",
	"link_token",
}

// botTokenPattern matches Telegram bot credentials embedded in API URLs,
// e.g. inside net/http error strings.
var botTokenPattern = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if isLinkTokenKey(a.Key) {
			return slog.String(a.Key, MaskToken(strVal))
		}
		if botTokenPattern.MatchString(strVal) {
			return slog.String(a.Key, RedactString(strVal))
		}
	case slog.KindAny:
		// Errors are rendered through their message; scrub it the same way.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			msg := err.Error()
			if botTokenPattern.MatchString(msg) {
				return slog.String(a.Key, RedactString(msg))
			}
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// MaskToken keeps the first four characters of a link token.
// Format: first 4 chars + "..."
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..."
}

// RedactString removes bot credentials from free text.
func RedactString(value string) string {
	return botTokenPattern.ReplaceAllString(value, "bot"+redactedValue)
}

// IsSensitiveKey reports whether a key's value must be dropped entirely.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range secretKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

func isLinkTokenKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, k := range linkTokenKeys {
		if keyLower == k {
			return true
		}
	}
	return false
}
