package identitystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/giantswarm/identity-store/cache"
	"github.com/giantswarm/identity-store/cors"
	"github.com/giantswarm/identity-store/security"
	"github.com/giantswarm/identity-store/storage"
	"github.com/giantswarm/identity-store/storage/caching"
	"github.com/giantswarm/identity-store/storage/memory"
	"github.com/giantswarm/identity-store/users"
)

// Seed is the startup data of the read-mostly stores.
// Every collection is copied at ingestion.
type Seed struct {
	Clients           []storage.Client
	IdentityResources []storage.Resource
	APIResources      []storage.Resource
	Users             []storage.User
}

// Stores aggregates every store and service of the identity store layer.
// Build it with New and release it with Close.
type Stores struct {
	// Clients resolves clients, through the client cache when caching is enabled
	Clients storage.ClientStore

	// Resources resolves identity and API resources, cached when caching is enabled
	Resources storage.ResourceStore

	// Grants holds authorization codes, refresh tokens, reference tokens and consents
	Grants storage.PersistedGrantStore

	// Users resolves local and externally linked users
	Users storage.UserStore

	// CORS answers whether an origin is allowed by any client
	CORS *cors.PolicyService

	// Profiles serves user claims and the active flag
	Profiles *users.ProfileService

	// Passwords validates resource-owner password credentials
	Passwords *users.PasswordValidator

	// Logins backs interactive and external login
	Logins *users.LoginService

	// Auditor logs security events. Nil-safe.
	Auditor *security.Auditor

	clientSet   *memory.ClientStore
	grants      *memory.GrantStore
	rateLimiter *security.RateLimiter
	closeOnce   sync.Once
}

// New validates cfg, applies defaults and builds every store from seed.
// Seeds are validated; duplicate or malformed records fail construction.
func New(cfg Config, seed Seed) (*Stores, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	inst := cfg.Instrumentation

	auditor := security.NewAuditor(logger, cfg.Security.EnableAuditLogging)
	auditor.SetInstrumentation(inst)

	encryptor, err := security.NewEncryptor(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	storeOpts := []memory.Option{
		memory.WithLogger(logger),
		memory.WithClock(cfg.Clock),
		memory.WithInstrumentation(inst),
		memory.WithAuditor(auditor),
	}

	clientSet, err := memory.NewClientStore(seed.Clients, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load clients: %w", err)
	}
	resourceSet, err := memory.NewResourceStore(seed.IdentityResources, seed.APIResources, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}
	userSet, err := memory.NewUserStore(seed.Users, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	s := &Stores{
		Clients:   clientSet,
		Resources: resourceSet,
		Users:     userSet,
		Auditor:   auditor,
		clientSet: clientSet,
	}

	corsTTL := cfg.Cache.CORSOriginTTL
	if cfg.Cache.Enabled {
		s.Clients = caching.NewClientStore(clientSet, cfg.Cache.ClientTTL, cacheOptions(cfg, "clients")...)
		s.Resources = caching.NewResourceStore(resourceSet, cfg.Cache.ResourceTTL, cacheOptions(cfg, "resources")...)
	} else {
		corsTTL = 0
	}
	s.CORS = cors.NewPolicyService(clientSet,
		cors.WithCacheTTL(corsTTL),
		cors.WithLogger(logger),
		cors.WithInstrumentation(inst),
		cors.WithClock(cfg.Clock),
	)

	userOpts := []users.Option{
		users.WithLogger(logger),
		users.WithAuditor(auditor),
		users.WithInstrumentation(inst),
	}
	if cfg.Security.PasswordRateLimit > 0 {
		s.rateLimiter = security.NewRateLimiter(security.RateLimiterConfig{
			Rate:        cfg.Security.PasswordRateLimit,
			Burst:       cfg.Security.PasswordRateBurst,
			IdleTimeout: DefaultPasswordRateLimiterIdleTimeout,
			Now:         cfg.Clock,
		}, logger)
		userOpts = append(userOpts, users.WithRateLimiter(s.rateLimiter))
	}
	s.Profiles = users.NewProfileService(userSet, userOpts...)
	s.Passwords = users.NewPasswordValidator(userSet, userOpts...)
	s.Logins = users.NewLoginService(userSet, s.Passwords, userOpts...)

	s.grants = memory.NewGrantStore(append(storeOpts,
		memory.WithEncryptor(encryptor),
		memory.WithCleanupInterval(cfg.Grants.CleanupInterval),
		memory.WithShardCount(cfg.Grants.ShardCount),
		memory.WithMaxGrants(cfg.Grants.MaxGrants),
	)...)
	s.Grants = s.grants

	logger.Info("Identity store initialized",
		"clients", clientSet.Len(),
		"users", userSet.Len(),
		"caching", cfg.Cache.Enabled,
		"encryption", encryptor.IsEnabled(),
		"audit", cfg.Security.EnableAuditLogging)

	return s, nil
}

func cacheOptions(cfg Config, name string) []cache.Option {
	opts := []cache.Option{
		cache.WithLogger(cfg.Logger),
		cache.WithClock(cfg.Clock),
		cache.WithInstrumentation(cfg.Instrumentation, name),
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
	}
	if cfg.Cache.SlidingExpiration {
		opts = append(opts, cache.WithSlidingExpiration())
	}
	return opts
}

// ReloadClients atomically replaces the client set. Client and CORS caches are
// invalidated before the call returns.
func (s *Stores) ReloadClients(clients []storage.Client) error {
	return s.clientSet.Reload(clients)
}

// ListClients returns a snapshot of the loaded clients in seed order
func (s *Stores) ListClients(ctx context.Context) ([]storage.Client, error) {
	return s.clientSet.ListClients(ctx)
}

// ValidateClientSecret reports whether secret matches an unexpired secret of the client
func (s *Stores) ValidateClientSecret(ctx context.Context, clientID, secret string) (bool, error) {
	return s.clientSet.ValidateClientSecret(ctx, clientID, secret)
}

// AuthenticateClient resolves the client of a token request and checks its
// secret. Clients without secrets are public and authenticate by ID alone
// when no secret is presented. The returned error is ready for the token
// endpoint response: invalid_client when the client cannot be authenticated,
// server_error when the client store fails.
func (s *Stores) AuthenticateClient(ctx context.Context, clientID, secret string) (*storage.Client, *OAuthError) {
	if clientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}

	client, err := s.Clients.FindClientByID(ctx, clientID)
	if err != nil {
		return nil, ErrServerError("client lookup failed")
	}
	if client == nil || !client.Enabled {
		return nil, ErrInvalidClient("unknown client")
	}

	if len(client.ClientSecrets) == 0 && secret == "" {
		return client, nil
	}

	ok, err := s.ValidateClientSecret(ctx, clientID, secret)
	if err != nil {
		return nil, ErrServerError("client authentication failed")
	}
	if !ok {
		return nil, ErrInvalidClient("invalid client credentials")
	}
	return client, nil
}

// SweepGrants removes every expired grant now and returns how many were removed
func (s *Stores) SweepGrants() int {
	return s.grants.Sweep()
}

// Close stops the background grant sweep and the password rate limiter.
// It is safe to call more than once.
func (s *Stores) Close() {
	s.closeOnce.Do(func() {
		s.grants.Close()
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	})
}
