// Package util provides common utility functions used across the identity-store module.
package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyLogLength is the number of characters of an opaque key that may appear in logs.
// This gives enough uniqueness for debugging without leaking a usable credential.
const KeyLogLength = 8

// SafeTruncate safely truncates a string to maxLen bytes without panicking.
// Returns the original string if it's shorter than maxLen.
//
// If maxLen is negative, it's treated as 0 and returns an empty string.
//
// Example:
//
//	SafeTruncate("very-long-grant-key-abc123", 8) // Returns: "very-lon"
//	SafeTruncate("short", 10)                     // Returns: "short"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// TruncateKey shortens an opaque grant or token key for logging.
func TruncateKey(key string) string {
	return SafeTruncate(key, KeyLogLength)
}

// HashForLogging creates a short SHA256 fingerprint of sensitive data (subject IDs,
// usernames) so audit records can be correlated without storing the value itself.
func HashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
