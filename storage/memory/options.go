package memory

import (
	"log/slog"
	"time"

	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/security"
)

const (
	// DefaultCleanupInterval is how often the grant store sweeps expired grants
	DefaultCleanupInterval = time.Minute

	// DefaultShardCount is the number of independently locked grant shards
	DefaultShardCount = 32
)

// options holds the settings shared by every in-memory store.
// Settings that do not apply to a store are ignored by it.
type options struct {
	logger          *slog.Logger
	clock           func() time.Time
	instrumentation *instrumentation.Instrumentation
	auditor         *security.Auditor
	encryptor       *security.Encryptor
	cleanupInterval time.Duration
	shardCount      int
	maxGrants       int
}

// Option configures an in-memory store
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:          slog.Default(),
		clock:           time.Now,
		cleanupInterval: DefaultCleanupInterval,
		shardCount:      DefaultShardCount,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithInstrumentation enables tracing and metrics for the store
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(o *options) {
		o.instrumentation = inst
	}
}

// WithAuditor sets the security auditor
func WithAuditor(auditor *security.Auditor) Option {
	return func(o *options) {
		o.auditor = auditor
	}
}

// WithEncryptor enables encryption of grant payloads at rest
func WithEncryptor(enc *security.Encryptor) Option {
	return func(o *options) {
		o.encryptor = enc
	}
}

// WithCleanupInterval sets how often the grant store sweeps expired grants.
// A zero or negative interval disables the background sweep; reads still
// re-check expiration.
func WithCleanupInterval(interval time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = interval
	}
}

// WithShardCount sets the number of grant shards. Values below 1 are ignored.
func WithShardCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shardCount = n
		}
	}
}

// WithMaxGrants caps the number of grants held by the grant store.
// Zero means unbounded.
func WithMaxGrants(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxGrants = n
		}
	}
}
