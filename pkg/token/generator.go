// Package token provides link token generation and secret hashing.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	// DefaultLength is the default token length in bytes (128 bits).
	DefaultLength = 16

	// MinLength is the shortest token accepted (96 bits).
	MinLength = 12

	// MaxEncodedLength bounds the encoded length of any token. Longer inputs
	// can never be a token.
	MaxEncodedLength = 256

	// MaxLength is the longest token in bytes whose encoding fits
	// MaxEncodedLength.
	MaxLength = MaxEncodedLength * 6 / 8
)

// Generator produces a new token. The service layer accepts one so tests can
// replace the random source.
type Generator func() (string, error)

// Generate generates a cryptographically secure random token.
//
// The returned token is Base64 RawURL encoded for safe URL transmission.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength generates a token with the specified byte length.
func GenerateWithLength(length int) (string, error) {
	return GenerateFrom(rand.Reader, length)
}

// GenerateFrom generates a token reading entropy from r.
func GenerateFrom(r io.Reader, length int) (string, error) {
	if length < MinLength {
		return "", fmt.Errorf("token: length %d below minimum %d bytes", length, MinLength)
	}
	if length > MaxLength {
		return "", fmt.Errorf("token: length %d above maximum %d bytes", length, MaxLength)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("token: read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewGenerator returns a Generator producing tokens of length bytes.
func NewGenerator(length int) Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return func() (string, error) {
		return GenerateWithLength(length)
	}
}

// IsWellFormed reports whether s could have been produced by this package.
// It does not say anything about whether the token exists.
func IsWellFormed(s string) bool {
	if s == "" || len(s) > MaxEncodedLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
