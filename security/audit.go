// Package security provides security features for the identity store including
// payload encryption, rate limiting, expiry checks, and audit logging.
package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/internal/util"
)

// Auditor handles security event logging with PII protection.
// A nil *Auditor is valid and discards every event.
type Auditor struct {
	logger          *slog.Logger
	enabled         bool
	instrumentation *instrumentation.Instrumentation
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// SetInstrumentation enables the audit event counter.
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if a != nil {
		a.instrumentation = inst
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	SubjectID string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with the subject hashed
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"subject_hash", util.HashForLogging(event.SubjectID),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	if a.instrumentation != nil {
		a.instrumentation.Metrics().RecordAuditEvent(context.Background(), event.Type)
	}
}

// LogExpiredGrantAccess logs a read of a grant whose expiration had passed.
func (a *Auditor) LogExpiredGrantAccess(grantKey, grantType, subjectID, clientID string) {
	a.LogEvent(Event{
		Type:      EventExpiredGrantAccess,
		SubjectID: subjectID,
		ClientID:  clientID,
		Details: map[string]any{
			"grant_key":  util.TruncateKey(grantKey),
			"grant_type": grantType,
		},
	})
}

// LogGrantRedeemed logs a read-and-delete of a grant.
func (a *Auditor) LogGrantRedeemed(grantKey, grantType, subjectID, clientID string) {
	a.LogEvent(Event{
		Type:      EventGrantRedeemed,
		SubjectID: subjectID,
		ClientID:  clientID,
		Details: map[string]any{
			"grant_key":  util.TruncateKey(grantKey),
			"grant_type": grantType,
		},
	})
}

// LogGrantsRevoked logs a bulk revocation.
func (a *Auditor) LogGrantsRevoked(subjectID, clientID, grantType string, count int) {
	a.LogEvent(Event{
		Type:      EventGrantsRevoked,
		SubjectID: subjectID,
		ClientID:  clientID,
		Details: map[string]any{
			"grant_type": grantType,
			"count":      count,
		},
	})
}

// LogPasswordValidationFailed logs a failed resource owner password validation.
// The username is hashed; reason is internal only and never returned to callers.
func (a *Auditor) LogPasswordValidationFailed(username, reason string) {
	a.LogEvent(Event{
		Type: EventPasswordValidationFailed,
		Details: map[string]any{
			"username_hash": util.HashForLogging(username),
			"reason":        reason,
		},
	})
}

// LogUserProvisioned logs an automatically provisioned external user.
func (a *Auditor) LogUserProvisioned(subjectID, providerName string) {
	a.LogEvent(Event{
		Type:      EventUserProvisioned,
		SubjectID: subjectID,
		Details: map[string]any{
			"provider": providerName,
		},
	})
}

// LogClientSetReloaded logs a replacement of the registered client set.
func (a *Auditor) LogClientSetReloaded(count int) {
	a.LogEvent(Event{
		Type: EventClientSetReloaded,
		Details: map[string]any{
			"client_count": count,
		},
	})
}

// LogPasswordRateLimited logs a password validation rejected by the per-username limiter.
func (a *Auditor) LogPasswordRateLimited(username string) {
	a.LogEvent(Event{
		Type: EventPasswordRateLimited,
		Details: map[string]any{
			"username_hash": util.HashForLogging(username),
		},
	})
}
