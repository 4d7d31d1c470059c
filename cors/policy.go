// Package cors decides whether a browser origin may make cross-origin requests,
// based on the allowed CORS origins of the registered clients.
package cors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/identity-store/cache"
	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/storage"
)

const (
	// DefaultCacheTTL bounds how long the allowed-origin set is reused between client reloads
	DefaultCacheTTL = 5 * time.Minute

	allowedOriginsKey = "allowed_origins"
)

// changeNotifier is implemented by client stores that can be reloaded
type changeNotifier interface {
	OnChange(fn func())
}

type originSet map[string]struct{}

// PolicyService answers IsOriginAllowed from the union of all clients' allowed origins.
//
// The origin set is cached. When the client source supports change
// notification (memory.ClientStore), the cache is invalidated on every reload,
// so it never outlives a client-set change.
type PolicyService struct {
	clients  storage.ClientLister
	origins  *cache.Cache[originSet]
	cacheTTL time.Duration
	logger   *slog.Logger
}

// Option configures a PolicyService
type Option func(*policyOptions)

type policyOptions struct {
	cacheTTL time.Duration
	logger   *slog.Logger
	inst     *instrumentation.Instrumentation
	clock    func() time.Time
}

// WithCacheTTL sets how long the origin set is cached. Zero or negative disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *policyOptions) { o.cacheTTL = ttl }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *policyOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInstrumentation records origin cache hits and misses
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(o *policyOptions) { o.inst = inst }
}

// WithClock overrides the time source of the origin cache
func WithClock(now func() time.Time) Option {
	return func(o *policyOptions) { o.clock = now }
}

// NewPolicyService creates a policy service over clients
func NewPolicyService(clients storage.ClientLister, opts ...Option) *PolicyService {
	o := policyOptions{
		cacheTTL: DefaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &PolicyService{
		clients:  clients,
		cacheTTL: o.cacheTTL,
		logger:   o.logger,
	}

	if p.cacheTTL > 0 {
		p.origins = cache.New[originSet](
			cache.WithLogger(o.logger),
			cache.WithClock(o.clock),
			cache.WithInstrumentation(o.inst, "cors_origins"),
		)
		if n, ok := clients.(changeNotifier); ok {
			n.OnChange(p.Invalidate)
		}
	}

	return p
}

// IsOriginAllowed reports whether some client lists origin among its allowed
// CORS origins. Comparison is exact after NormalizeOrigin; values that are not
// a bare origin never match.
func (p *PolicyService) IsOriginAllowed(ctx context.Context, origin string) (bool, error) {
	normalized, err := NormalizeOrigin(origin)
	if err != nil {
		p.logger.Debug("Rejected malformed origin", "error", err)
		return false, nil
	}

	var allowed originSet
	if p.origins != nil {
		allowed, err = p.origins.GetOrCreate(ctx, allowedOriginsKey, p.cacheTTL, p.loadOrigins)
	} else {
		allowed, err = p.loadOrigins(ctx)
	}
	if err != nil {
		return false, err
	}

	_, ok := allowed[normalized]
	if !ok {
		p.logger.Debug("Origin not allowed", "origin", normalized)
	}
	return ok, nil
}

// Invalidate drops the cached origin set; the next check rebuilds it
func (p *PolicyService) Invalidate() {
	if p.origins != nil {
		p.origins.Invalidate(allowedOriginsKey)
	}
}

func (p *PolicyService) loadOrigins(ctx context.Context) (originSet, error) {
	clients, err := p.clients.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	set := make(originSet)
	for _, c := range clients {
		for _, origin := range c.AllowedCORSOrigins {
			normalized, err := NormalizeOrigin(origin)
			if err != nil {
				p.logger.Warn("Ignoring invalid allowed CORS origin",
					"client_id", c.ClientID,
					"error", err)
				continue
			}
			set[normalized] = struct{}{}
		}
	}

	return set, nil
}
