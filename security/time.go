package security

import "time"

// IsExpiredAt reports whether an artifact expiring at expiresAt is expired at now.
// The boundary is exclusive: an artifact is live only while now < expiresAt.
// A zero expiresAt means the artifact never expires.
func IsExpiredAt(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt)
}
