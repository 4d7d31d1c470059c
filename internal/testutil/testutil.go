// Package testutil provides testing utilities and helpers for the identity store.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/identity-store/storage"
)

// MockTime provides a controllable time source for deterministic testing.
// It is safe for concurrent use.
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// HashSecret returns a bcrypt hash of secret at minimum cost to keep tests fast
func HashSecret(t testing.TB, secret string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash secret: %v", err)
	}
	return string(hash)
}

// GenerateTestClient creates an enabled test client allowed to use the given CORS origins
func GenerateTestClient(clientID string, origins ...string) storage.Client {
	return storage.Client{
		ClientID:                  clientID,
		ClientName:                "Test Client " + clientID,
		AllowedGrantTypes:         []string{"authorization_code", "refresh_token"},
		RedirectURIs:              []string{"https://example.com/callback"},
		AllowedScopes:             []string{"openid", "api1"},
		AllowedCORSOrigins:        origins,
		RequirePKCE:               true,
		Enabled:                   true,
		AccessTokenLifetime:       time.Hour,
		AuthorizationCodeLifetime: 5 * time.Minute,
	}
}

// GenerateTestGrant creates a grant with a random key expiring at expiration
func GenerateTestGrant(grantType storage.GrantType, subjectID, clientID string, created, expiration time.Time) *storage.PersistedGrant {
	return &storage.PersistedGrant{
		Key:          GenerateRandomString(32),
		Type:         grantType,
		ClientID:     clientID,
		SubjectID:    subjectID,
		CreationTime: created,
		Expiration:   expiration,
		Data:         `{"scopes":["openid"]}`,
	}
}

// GenerateTestUser creates an enabled local user with a hashed password and basic claims
func GenerateTestUser(t testing.TB, subjectID, username, password string) storage.User {
	t.Helper()

	return storage.User{
		SubjectID:    subjectID,
		Username:     username,
		PasswordHash: HashSecret(t, password),
		Enabled:      true,
		Claims: []storage.Claim{
			{Type: "name", Value: username},
			{Type: "email", Value: username + "@example.com"},
			{Type: "role", Value: "user"},
		},
	}
}

// GenerateRandomString generates a random base64-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}
