// Package service provides domain services for FileLink.
//
// Domain services contain the business rules and orchestrate operations on
// domain models. They define interfaces for storage dependencies so every
// backend in internal/storage can be swapped in.
//
// This package contains:
//
//   - LinkService: insert, consume and sweep of token-indexed links
//   - Sweeper: the background loop that removes expired links
//
// Services are safe for concurrent use. The per-token atomicity of consume
// is delegated to the repository.
package service
