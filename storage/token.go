package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// KnownExtraFields lists the OIDC extra fields that are preserved in token payloads.
// These fields are stored in oauth2.Token's private 'raw' field.
//
// SECURITY: Unknown extra fields are dropped so arbitrary provider data never
// ends up in a persisted grant.
var KnownExtraFields = []string{
	"id_token",   // OIDC ID token
	"scope",      // Granted scopes (may differ from requested)
	"expires_in", // Token lifetime in seconds
}

// tokenPayload is the serialized form of an oauth2.Token inside PersistedGrant.Data
type tokenPayload struct {
	AccessToken  string                 `json:"access_token,omitempty"`
	TokenType    string                 `json:"token_type,omitempty"`
	RefreshToken string                 `json:"refresh_token,omitempty"`
	Expiry       time.Time              `json:"expiry,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// ExtractTokenExtra extracts known extra fields from an oauth2.Token.
// The oauth2.Token.Extra() method is the only way to access the private raw field.
//
// Returns nil if the token is nil or has no known extra fields.
func ExtractTokenExtra(token *oauth2.Token) map[string]interface{} {
	if token == nil {
		return nil
	}

	extra := make(map[string]interface{}, len(KnownExtraFields))

	for _, field := range KnownExtraFields {
		if v := token.Extra(field); v != nil {
			extra[field] = v
		}
	}

	if len(extra) == 0 {
		return nil
	}
	return extra
}

// EncodeTokenPayload serializes a token, including its known extra fields,
// into a string suitable for PersistedGrant.Data.
func EncodeTokenPayload(token *oauth2.Token) (string, error) {
	if token == nil {
		return "", fmt.Errorf("%w: token is nil", ErrInvalidGrant)
	}

	data, err := json.Marshal(tokenPayload{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Extra:        ExtractTokenExtra(token),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token payload: %w", err)
	}

	return string(data), nil
}

// DecodeTokenPayload restores a token encoded with EncodeTokenPayload
func DecodeTokenPayload(data string) (*oauth2.Token, error) {
	var p tokenPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadCorrupted, err)
	}

	token := &oauth2.Token{
		AccessToken:  p.AccessToken,
		TokenType:    p.TokenType,
		RefreshToken: p.RefreshToken,
		Expiry:       p.Expiry,
	}
	if len(p.Extra) > 0 {
		token = token.WithExtra(p.Extra)
	}

	return token, nil
}
