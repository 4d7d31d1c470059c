// Package storage defines the data model and store interfaces of the identity store.
// It supports in-memory implementations and caching decorators.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store-internal failures.
// Absence (unknown client, resource, user or grant) is never reported as an error;
// lookups return a nil record instead.
var (
	// ErrStoreFull is returned when a store has reached its configured capacity
	ErrStoreFull = errors.New("store capacity exceeded")

	// ErrInvalidGrant is returned when a grant cannot be stored because it is malformed
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrInvalidFilter is returned when a bulk operation is called without a subject
	ErrInvalidFilter = errors.New("invalid grant filter")

	// ErrPayloadCorrupted is returned when a stored grant payload cannot be decrypted or decoded
	ErrPayloadCorrupted = errors.New("grant payload corrupted")

	// ErrDuplicateClient is returned when a client ID appears more than once in a seed
	ErrDuplicateClient = errors.New("duplicate client id")

	// ErrInvalidClient is returned when a seeded client is malformed
	ErrInvalidClient = errors.New("invalid client")

	// ErrDuplicateResource is returned when a resource name appears twice within one kind
	ErrDuplicateResource = errors.New("duplicate resource name")

	// ErrInvalidResource is returned when a seeded resource is malformed or of the wrong kind
	ErrInvalidResource = errors.New("invalid resource")

	// ErrDuplicateUser is returned when a subject ID or username is already taken
	ErrDuplicateUser = errors.New("duplicate user")

	// ErrInvalidUser is returned when a user record is malformed
	ErrInvalidUser = errors.New("invalid user")
)

// ClientStore resolves OAuth clients by identifier.
// All methods accept context.Context for tracing only.
type ClientStore interface {
	// FindClientByID returns the client with the exact given ID, or nil when absent
	FindClientByID(ctx context.Context, clientID string) (*Client, error)
}

// ClientLister enumerates the loaded client set.
type ClientLister interface {
	// ListClients returns a snapshot of all loaded clients
	ListClients(ctx context.Context) ([]Client, error)
}

// ResourceStore resolves identity and API resources.
// Unmatched names are omitted and results follow seed order.
type ResourceStore interface {
	// FindIdentityResourcesByScope returns identity resources whose name is in scopeNames
	FindIdentityResourcesByScope(ctx context.Context, scopeNames []string) ([]Resource, error)

	// FindAPIResourcesByScope returns API resources owning at least one scope in scopeNames
	FindAPIResourcesByScope(ctx context.Context, scopeNames []string) ([]Resource, error)

	// FindAPIResource returns the API resource with the given name, or nil when absent
	FindAPIResource(ctx context.Context, name string) (*Resource, error)

	// GetAllResources returns a snapshot of every loaded resource
	GetAllResources(ctx context.Context) (*Resources, error)
}

// PersistedGrantStore owns expiring grant records keyed by opaque grant keys.
//
// Every read path re-checks expiration: a grant is returned only while now < Expiration.
// Operations on the same key are atomic; operations on different keys do not block each other.
type PersistedGrantStore interface {
	// StoreGrant inserts or overwrites the grant with grant.Key (last writer wins)
	StoreGrant(ctx context.Context, grant *PersistedGrant) error

	// GetGrant returns the live grant for key, or nil when absent or expired.
	// The grant stays in the store (peek).
	GetGrant(ctx context.Context, key string) (*PersistedGrant, error)

	// TakeGrant atomically returns and removes the live grant for key, or nil.
	// Use it to redeem single-use grants such as authorization codes.
	TakeGrant(ctx context.Context, key string) (*PersistedGrant, error)

	// GetAllGrants returns every live grant of a subject across clients and types
	GetAllGrants(ctx context.Context, subjectID string) ([]PersistedGrant, error)

	// RemoveGrant deletes the grant for key. Removing an absent key is not an error.
	RemoveGrant(ctx context.Context, key string) error

	// RemoveAllGrants deletes the subject's grants matching filter and returns how many were removed
	RemoveAllGrants(ctx context.Context, filter GrantFilter) (int, error)
}

// UserStore resolves users by subject, username or external login.
type UserStore interface {
	// FindBySubject returns the user with the given subject ID, or nil when absent
	FindBySubject(ctx context.Context, subjectID string) (*User, error)

	// FindByUsername returns the user with the given username, or nil when absent
	FindByUsername(ctx context.Context, username string) (*User, error)

	// FindByExternalProvider returns the user linked to an external login, or nil when absent
	FindByExternalProvider(ctx context.Context, providerName, providerSubjectID string) (*User, error)
}

// UserWriter adds users at runtime (external login auto-provisioning).
type UserWriter interface {
	AddUser(ctx context.Context, user *User) error
}

// Secret is a hashed client secret
type Secret struct {
	Value       string // bcrypt hash
	Description string
	Expiration  time.Time // zero means the secret never expires
}

// Client represents a registered OAuth client. Clients are immutable after load.
type Client struct {
	ClientID                     string
	ClientName                   string
	ClientSecrets                []Secret
	AllowedGrantTypes            []string
	RedirectURIs                 []string
	PostLogoutRedirectURIs       []string
	AllowedScopes                []string
	AllowedCORSOrigins           []string
	RequireConsent               bool
	RequirePKCE                  bool
	AllowOfflineAccess           bool
	Enabled                      bool
	AccessTokenLifetime          time.Duration
	AuthorizationCodeLifetime    time.Duration
	AbsoluteRefreshTokenLifetime time.Duration
}

// Clone returns a deep copy of the client
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	out := *c
	out.ClientSecrets = append([]Secret(nil), c.ClientSecrets...)
	out.AllowedGrantTypes = cloneStrings(c.AllowedGrantTypes)
	out.RedirectURIs = cloneStrings(c.RedirectURIs)
	out.PostLogoutRedirectURIs = cloneStrings(c.PostLogoutRedirectURIs)
	out.AllowedScopes = cloneStrings(c.AllowedScopes)
	out.AllowedCORSOrigins = cloneStrings(c.AllowedCORSOrigins)
	return &out
}

// ResourceKind discriminates identity resources from API resources
type ResourceKind string

const (
	ResourceKindIdentity ResourceKind = "identity"
	ResourceKindAPI      ResourceKind = "api"
)

// Scope is a scope exposed by an API resource
type Scope struct {
	Name        string
	DisplayName string
	Description string
	Required    bool
	Emphasize   bool
	UserClaims  []string
}

// Resource is an identity or API resource, discriminated by Kind.
// Required, Emphasize and ShowInDiscoveryDocument apply to identity resources;
// Scopes applies to API resources.
type Resource struct {
	Kind        ResourceKind
	Name        string
	DisplayName string
	Description string
	Enabled     bool
	UserClaims  []string

	Required                bool
	Emphasize               bool
	ShowInDiscoveryDocument bool

	Scopes []Scope
}

// ScopeNames returns the names of an API resource's scopes
func (r *Resource) ScopeNames() []string {
	names := make([]string, 0, len(r.Scopes))
	for _, s := range r.Scopes {
		names = append(names, s.Name)
	}
	return names
}

// Clone returns a deep copy of the resource
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	out := *r
	out.UserClaims = cloneStrings(r.UserClaims)
	if r.Scopes != nil {
		out.Scopes = make([]Scope, len(r.Scopes))
		for i, s := range r.Scopes {
			s.UserClaims = cloneStrings(s.UserClaims)
			out.Scopes[i] = s
		}
	}
	return &out
}

// Resources is a snapshot of every loaded resource
type Resources struct {
	IdentityResources []Resource
	APIResources      []Resource
}

// Claim is a single user claim
type Claim struct {
	Type  string
	Value string
}

// User is a local or externally provisioned user account
type User struct {
	SubjectID         string
	Username          string
	PasswordHash      string // bcrypt hash, empty for external-only users
	Enabled           bool
	ProviderName      string
	ProviderSubjectID string
	Claims            []Claim
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Claims = append([]Claim(nil), u.Claims...)
	return &out
}

// GrantType discriminates persisted grant records
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeRefreshToken      GrantType = "refresh_token"
	GrantTypeReferenceToken    GrantType = "reference_token"
	GrantTypeUserConsent       GrantType = "user_consent"
	GrantTypeDeviceCode        GrantType = "device_code"
)

// PersistedGrant is an opaque, expiring grant record.
// Data is a serialized payload owned by the protocol layer and never interpreted here.
type PersistedGrant struct {
	Key          string
	Type         GrantType
	ClientID     string
	SubjectID    string // empty for client-only grants
	CreationTime time.Time
	Expiration   time.Time // zero means the grant never expires
	Data         string
}

// Clone returns a copy of the grant
func (g *PersistedGrant) Clone() *PersistedGrant {
	if g == nil {
		return nil
	}
	out := *g
	return &out
}

// GrantFilter selects grants for bulk revocation.
// SubjectID is required; empty ClientID or Type match any value.
type GrantFilter struct {
	SubjectID string
	ClientID  string
	Type      GrantType
}

// Matches reports whether grant satisfies the filter
func (f GrantFilter) Matches(grant *PersistedGrant) bool {
	if grant.SubjectID != f.SubjectID {
		return false
	}
	if f.ClientID != "" && grant.ClientID != f.ClientID {
		return false
	}
	if f.Type != "" && grant.Type != f.Type {
		return false
	}
	return true
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
