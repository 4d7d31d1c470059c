// Package security provides security primitives used by the identity stores.
//
// # Expiry
//
// IsExpiredAt implements the single expiry rule used by every read path:
// a value is live only while now < expiresAt, and a zero expiry never expires.
//
// # Payload Encryption
//
// Encryptor seals persisted grant payloads with AES-256-GCM. Each ciphertext
// is bound to the grant key as associated data.
//
//	key, _ := security.GenerateKey()
//	enc, _ := security.NewEncryptor(key)
//	sealed, _ := enc.Seal(payload, grantKey)
//
// # Rate Limiting
//
// RateLimiter provides per-identifier token bucket limiting with LRU eviction.
// It throttles resource owner password validation per username.
//
//	limiter := security.NewRateLimiter(security.RateLimiterConfig{Rate: 1, Burst: 5}, logger)
//	defer limiter.Stop()
//
// # Audit Logging
//
// Auditor emits "security_audit" log records. Subject identifiers and usernames
// are hashed, and opaque grant keys are truncated.
package security
