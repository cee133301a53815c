// Package token provides link token generation and secret hashing.
//
// Link tokens are the public half of a redirection entry: they travel in
// deep links and must be impossible to guess or enumerate.
//
// Token Format:
//
//   - Body: Base64 RawURL encoded random bytes, no prefix
//   - Default: 16 bytes (128 bits), 22 characters
//   - Minimum: 12 bytes (96 bits)
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - A failing entropy source is reported, never replaced by a weaker one
//   - Secrets such as the admin token are compared by SHA-256 hash in constant time
package token
