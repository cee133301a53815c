// Package domain defines the core domain models for FileLink.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - LinkEntry: a token-indexed redirection to a chat message
//   - Reference: the (chat, message) pair a token resolves to
//   - Errors: coded domain errors shared by every layer
package domain
