// Package token provides link token generation and secret hashing.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash computes the hex encoded SHA-256 hash of a secret.
func Hash(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// Verify checks a presented secret against an expected hash in constant time.
func Verify(secret, expectedHash string) bool {
	if expectedHash == "" {
		return false
	}
	actualHash := Hash(secret)
	return subtle.ConstantTimeCompare([]byte(actualHash), []byte(expectedHash)) == 1
}
