package identitystore

import (
	"time"

	"github.com/giantswarm/identity-store/cache"
	"github.com/giantswarm/identity-store/storage/memory"
)

const (
	// DefaultCleanupInterval is how often expired grants are swept
	DefaultCleanupInterval = memory.DefaultCleanupInterval

	// DefaultShardCount is the default number of grant shards
	DefaultShardCount = memory.DefaultShardCount

	// DefaultCacheTTL is the default lifetime of cached client, resource and origin lookups
	DefaultCacheTTL = cache.DefaultTTL

	// DefaultPasswordRateBurst is the default burst of password validations per username
	DefaultPasswordRateBurst = 5

	// DefaultPasswordRateLimiterIdleTimeout is how long an unused per-username limiter is kept
	DefaultPasswordRateLimiterIdleTimeout = 30 * time.Minute
)
