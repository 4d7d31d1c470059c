package identitystore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/giantswarm/identity-store/users"
)

// ErrInvalidConfig is returned by Config.Validate and New for invalid settings
var ErrInvalidConfig = errors.New("invalid identity store configuration")

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidGrant   = users.ErrorInvalidGrant
	ErrorCodeInvalidClient  = "invalid_client"
	ErrorCodeServerError    = "server_error"
)

// OAuthError represents an OAuth 2.0 error response
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_grant")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Response returns the wire form of the error
func (e *OAuthError) Response() ErrorResponse {
	return ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	}
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common OAuth errors as reusable instances
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidGrant indicates the credentials, authorization code or refresh token are invalid or expired
	ErrInvalidGrant = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates client authentication failed
	ErrInvalidClient = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
	}

	// ErrServerError indicates an internal server error occurred
	ErrServerError = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}
)

// PasswordGrantError converts a failed password validation into the token
// endpoint error. It returns nil when the validation succeeded.
func PasswordGrantError(result *users.ValidationResult) *OAuthError {
	if result == nil || !result.IsError() {
		return nil
	}
	return ErrInvalidGrant(result.ErrorDescription)
}
