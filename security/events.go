package security

// Event type constants for security audit logging.
const (
	// Grant lifecycle events

	// EventExpiredGrantAccess is logged when an expired grant is read (and purged)
	EventExpiredGrantAccess = "expired_grant_access"

	// EventGrantRedeemed is logged when a single-use grant is read and deleted
	EventGrantRedeemed = "grant_redeemed"

	// EventGrantsRevoked is logged on bulk revocation (logout, consent revocation)
	EventGrantsRevoked = "grants_revoked"

	// User events

	// EventPasswordValidationFailed is logged when a password grant fails validation
	EventPasswordValidationFailed = "password_validation_failed" //nolint:gosec // G101: event name, not a credential

	// EventPasswordRateLimited is logged when password validation is throttled
	EventPasswordRateLimited = "password_rate_limited" //nolint:gosec // G101: event name, not a credential

	// EventUserProvisioned is logged when a user from an external provider is created
	EventUserProvisioned = "user_provisioned"

	// Client events

	// EventClientSetReloaded is logged when the registered client set is replaced
	EventClientSetReloaded = "client_set_reloaded"
)

// Password validation failure reasons. These are audit-only: callers always
// receive the same failure shape regardless of which reason applied.
const (
	ReasonUnknownUser    = "unknown_user"
	ReasonDisabledUser   = "disabled_user"
	ReasonBadCredentials = "bad_credentials"
	ReasonRateLimited    = "rate_limited"
)
