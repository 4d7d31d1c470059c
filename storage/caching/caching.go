// Package caching provides caching decorators for client and resource stores.
//
// Only found records are cached, so a client or resource added by a reload is
// visible immediately once the decorator is invalidated. When the inner store
// supports change notification (memory.ClientStore), the client cache is
// cleared on every reload.
package caching

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/giantswarm/identity-store/cache"
	"github.com/giantswarm/identity-store/storage"
)

// DefaultTTL is the default lifetime of a cached lookup
const DefaultTTL = 5 * time.Minute

// errAbsent keeps not-found results out of the cache
var errAbsent = errors.New("absent")

type changeNotifier interface {
	OnChange(fn func())
}

// ClientStore caches FindClientByID results of an inner store
type ClientStore struct {
	inner   storage.ClientStore
	clients *cache.Cache[*storage.Client]
	ttl     time.Duration
}

var _ storage.ClientStore = (*ClientStore)(nil)

// NewClientStore wraps inner. A non-positive ttl uses DefaultTTL.
func NewClientStore(inner storage.ClientStore, ttl time.Duration, opts ...cache.Option) *ClientStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &ClientStore{
		inner:   inner,
		clients: cache.New[*storage.Client](opts...),
		ttl:     ttl,
	}
	if n, ok := inner.(changeNotifier); ok {
		n.OnChange(s.Invalidate)
	}
	return s
}

// FindClientByID returns a copy of the client, or nil when absent
func (s *ClientStore) FindClientByID(ctx context.Context, clientID string) (*storage.Client, error) {
	client, err := s.clients.GetOrCreate(ctx, clientID, s.ttl, func(ctx context.Context) (*storage.Client, error) {
		c, err := s.inner.FindClientByID(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, errAbsent
		}
		return c, nil
	})
	if errors.Is(err, errAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client.Clone(), nil
}

// Invalidate drops every cached client
func (s *ClientStore) Invalidate() {
	s.clients.Clear()
}

// ResourceStore caches lookups of an inner resource store.
// Scope-set lookups are keyed by the sorted, deduplicated scope names.
type ResourceStore struct {
	inner     storage.ResourceStore
	resources *cache.Cache[[]storage.Resource]
	all       *cache.Cache[*storage.Resources]
	ttl       time.Duration
}

var _ storage.ResourceStore = (*ResourceStore)(nil)

// NewResourceStore wraps inner. A non-positive ttl uses DefaultTTL.
func NewResourceStore(inner storage.ResourceStore, ttl time.Duration, opts ...cache.Option) *ResourceStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResourceStore{
		inner:     inner,
		resources: cache.New[[]storage.Resource](opts...),
		all:       cache.New[*storage.Resources](opts...),
		ttl:       ttl,
	}
}

func scopeKey(prefix string, names []string) string {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	unique := make([]string, 0, len(set))
	for n := range set {
		unique = append(unique, n)
	}
	sort.Strings(unique)
	return prefix + ":" + strings.Join(unique, " ")
}

func cloneResources(in []storage.Resource) []storage.Resource {
	out := make([]storage.Resource, 0, len(in))
	for i := range in {
		out = append(out, *in[i].Clone())
	}
	return out
}

func (s *ResourceStore) cached(ctx context.Context, key string, load func(ctx context.Context) ([]storage.Resource, error)) ([]storage.Resource, error) {
	resources, err := s.resources.GetOrCreate(ctx, key, s.ttl, load)
	if err != nil {
		return nil, err
	}
	return cloneResources(resources), nil
}

// FindIdentityResourcesByScope returns the identity resources whose name is in scopeNames
func (s *ResourceStore) FindIdentityResourcesByScope(ctx context.Context, scopeNames []string) ([]storage.Resource, error) {
	return s.cached(ctx, scopeKey("identity", scopeNames), func(ctx context.Context) ([]storage.Resource, error) {
		return s.inner.FindIdentityResourcesByScope(ctx, scopeNames)
	})
}

// FindAPIResourcesByScope returns the API resources owning a scope in scopeNames
func (s *ResourceStore) FindAPIResourcesByScope(ctx context.Context, scopeNames []string) ([]storage.Resource, error) {
	return s.cached(ctx, scopeKey("api", scopeNames), func(ctx context.Context) ([]storage.Resource, error) {
		return s.inner.FindAPIResourcesByScope(ctx, scopeNames)
	})
}

// FindAPIResource returns the API resource with the given name, or nil when absent
func (s *ResourceStore) FindAPIResource(ctx context.Context, name string) (*storage.Resource, error) {
	resources, err := s.cached(ctx, "api-name:"+name, func(ctx context.Context) ([]storage.Resource, error) {
		r, err := s.inner.FindAPIResource(ctx, name)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, errAbsent
		}
		return []storage.Resource{*r}, nil
	})
	if errors.Is(err, errAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resources[0], nil
}

// GetAllResources returns every resource of the inner store
func (s *ResourceStore) GetAllResources(ctx context.Context) (*storage.Resources, error) {
	all, err := s.all.GetOrCreate(ctx, "all", s.ttl, s.inner.GetAllResources)
	if err != nil {
		return nil, err
	}
	return &storage.Resources{
		IdentityResources: cloneResources(all.IdentityResources),
		APIResources:      cloneResources(all.APIResources),
	}, nil
}

// Invalidate drops every cached lookup
func (s *ResourceStore) Invalidate() {
	s.resources.Clear()
	s.all.Clear()
}
