// Package config provides server configuration for FileLink.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation of values and cross-field rules
//   - sanitize.go: Copy with secrets masked, for logging
//
// Configuration is loaded via internal/infra/confloader from defaults, a
// YAML file, FILELINK_* environment variables and flags.
package config
