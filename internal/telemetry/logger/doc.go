// Package logger provides structured logging for FileLink.
//
//   - logger.go: slog handler configuration and the Logger interface
//   - context.go: request IDs and request-scoped attributes added to records
//   - redact.go: Sensitive data redaction
//
// Link tokens are bearer credentials for the content they point at, so they
// are masked wherever they appear as a log attribute.
package logger
