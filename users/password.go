package users

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/security"
	"github.com/giantswarm/identity-store/storage"
)

const (
	// ErrorInvalidGrant is the OAuth error code returned for every password validation failure
	ErrorInvalidGrant = "invalid_grant"

	// ErrorDescriptionInvalidCredentials is the only failure description ever returned
	ErrorDescriptionInvalidCredentials = "invalid username or password"

	// dummyPasswordHash is compared when there is no real hash to compare against
	// (bcrypt hash of "test" at the default cost).
	dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// ValidationResult is the outcome of a password validation.
// On success Subject is set; on failure Error and ErrorDescription are set
// to the same values whatever the reason.
type ValidationResult struct {
	Subject          string
	Error            string
	ErrorDescription string
}

// IsError reports whether validation failed
func (r *ValidationResult) IsError() bool {
	return r.Error != ""
}

func failedValidation() *ValidationResult {
	return &ValidationResult{
		Error:            ErrorInvalidGrant,
		ErrorDescription: ErrorDescriptionInvalidCredentials,
	}
}

// PasswordValidator validates resource owner password credentials
type PasswordValidator struct {
	users           storage.UserStore
	rateLimiter     *security.RateLimiter
	auditor         *security.Auditor
	instrumentation *instrumentation.Instrumentation
	logger          *slog.Logger
}

// NewPasswordValidator creates a validator over users
func NewPasswordValidator(users storage.UserStore, opts ...Option) *PasswordValidator {
	o := applyOptions(opts)
	return &PasswordValidator{
		users:           users,
		rateLimiter:     o.rateLimiter,
		auditor:         o.auditor,
		instrumentation: o.instrumentation,
		logger:          o.logger,
	}
}

// Validate checks username and password.
//
// Unknown users, users without a password, wrong passwords, disabled users and
// rate-limited usernames all produce the same ValidationResult. An error is
// returned only when the user store itself fails.
func (v *PasswordValidator) Validate(ctx context.Context, username, password string) (*ValidationResult, error) {
	allowed := v.rateLimiter == nil || v.rateLimiter.Allow(username)

	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	// SECURITY: Always perform exactly one bcrypt comparison
	hash := dummyPasswordHash
	if user != nil && user.PasswordHash != "" {
		hash = user.PasswordHash
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	reason := ""
	switch {
	case !allowed:
		reason = security.ReasonRateLimited
	case user == nil:
		reason = security.ReasonUnknownUser
	case user.PasswordHash == "" || compareErr != nil:
		reason = security.ReasonBadCredentials
	case !user.Enabled:
		reason = security.ReasonDisabledUser
	}

	if reason != "" {
		if reason == security.ReasonRateLimited {
			v.auditor.LogPasswordRateLimited(username)
		} else {
			v.auditor.LogPasswordValidationFailed(username, reason)
		}
		v.record(ctx, "failure")
		return failedValidation(), nil
	}

	v.record(ctx, "success")
	v.logger.Debug("Password validated")
	return &ValidationResult{Subject: user.SubjectID}, nil
}

func (v *PasswordValidator) record(ctx context.Context, result string) {
	if v.instrumentation != nil {
		v.instrumentation.Metrics().RecordPasswordValidation(ctx, result)
	}
}
