package identitystore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/identity-store/instrumentation"
)

// Config holds the identity store configuration
// Structured using composition for better organization and maintainability
type Config struct {
	// Grants configures the persisted grant store
	Grants GrantConfig

	// Cache configures the caching decorators and the CORS origin cache
	Cache CacheConfig

	// Security settings (secure by default)
	Security SecurityConfig

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation enables tracing and metrics on every store (optional).
	// The caller owns it and shuts it down.
	Instrumentation *instrumentation.Instrumentation

	// Clock is the time source for expiry checks, caches and rate limiting.
	// Default: time.Now
	Clock func() time.Time
}

// GrantConfig holds persisted grant store configuration
type GrantConfig struct {
	// CleanupInterval is how often expired grants are swept.
	// Default: 1 minute. Negative disables the background sweep;
	// reads still never return expired grants.
	CleanupInterval time.Duration

	// ShardCount is the number of independently locked shards.
	// Default: 32
	ShardCount int

	// MaxGrants caps the number of stored grants. Zero means unbounded.
	MaxGrants int
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	// Enabled wraps the client and resource stores with caching decorators
	// and caches the CORS origin set.
	Enabled bool

	// ClientTTL is how long a client lookup is cached. Default: 5 minutes
	ClientTTL time.Duration

	// ResourceTTL is how long a resource lookup is cached. Default: 5 minutes
	ResourceTTL time.Duration

	// CORSOriginTTL is how long the allowed-origin set is cached. Default: 5 minutes
	CORSOriginTTL time.Duration

	// SlidingExpiration renews cached lookups on every hit
	SlidingExpiration bool

	// MaxEntries bounds each cache. Zero means unbounded.
	MaxEntries int
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// EncryptionKey is the AES-256 key (32 bytes) for grant payload encryption at rest.
	// Nil disables encryption. Generate with security.GenerateKey().
	EncryptionKey []byte

	// EnableAuditLogging enables security audit logging.
	// Logs grant redemption, revocation, expired access, and failed password
	// validations (subjects and usernames hashed).
	EnableAuditLogging bool

	// PasswordRateLimit is password validations per second allowed per username.
	// Zero disables limiting.
	PasswordRateLimit float64

	// PasswordRateBurst is the maximum burst of password validations per username.
	// Default: 5
	PasswordRateBurst int
}

// applyDefaults fills zero values with their documented defaults
func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}

	if c.Grants.CleanupInterval == 0 {
		c.Grants.CleanupInterval = DefaultCleanupInterval
	}
	if c.Grants.ShardCount == 0 {
		c.Grants.ShardCount = DefaultShardCount
	}

	if c.Cache.ClientTTL == 0 {
		c.Cache.ClientTTL = DefaultCacheTTL
	}
	if c.Cache.ResourceTTL == 0 {
		c.Cache.ResourceTTL = DefaultCacheTTL
	}
	if c.Cache.CORSOriginTTL == 0 {
		c.Cache.CORSOriginTTL = DefaultCacheTTL
	}

	if c.Security.PasswordRateLimit > 0 && c.Security.PasswordRateBurst == 0 {
		c.Security.PasswordRateBurst = DefaultPasswordRateBurst
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Grants.ShardCount < 0 {
		return fmt.Errorf("%w: grant shard count must not be negative, got %d", ErrInvalidConfig, c.Grants.ShardCount)
	}
	if c.Grants.MaxGrants < 0 {
		return fmt.Errorf("%w: max grants must not be negative, got %d", ErrInvalidConfig, c.Grants.MaxGrants)
	}

	if c.Cache.ClientTTL < 0 || c.Cache.ResourceTTL < 0 || c.Cache.CORSOriginTTL < 0 {
		return fmt.Errorf("%w: cache ttl must not be negative", ErrInvalidConfig)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("%w: cache max entries must not be negative, got %d", ErrInvalidConfig, c.Cache.MaxEntries)
	}

	if n := len(c.Security.EncryptionKey); n != 0 && n != 32 {
		return fmt.Errorf("%w: encryption key must be exactly 32 bytes, got %d", ErrInvalidConfig, n)
	}
	if c.Security.PasswordRateLimit < 0 {
		return fmt.Errorf("%w: password rate limit must not be negative", ErrInvalidConfig)
	}
	if c.Security.PasswordRateBurst < 0 {
		return fmt.Errorf("%w: password rate burst must not be negative, got %d", ErrInvalidConfig, c.Security.PasswordRateBurst)
	}

	return nil
}
