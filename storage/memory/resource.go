package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/identity-store/storage"
)

// ResourceStore is an immutable in-memory store of identity and API resources.
// Results follow seed order, so identical input always yields equal output.
type ResourceStore struct {
	telemetry

	identity []*storage.Resource
	api      []*storage.Resource
	apiNames map[string]*storage.Resource

	logger *slog.Logger
}

var _ storage.ResourceStore = (*ResourceStore)(nil)

// NewResourceStore creates a resource store from copies of the given seeds.
// A resource with an empty Kind takes the kind of the list it is seeded in;
// a mismatched Kind, an empty name, or a duplicate name within a kind is rejected.
func NewResourceStore(identity, api []storage.Resource, opts ...Option) (*ResourceStore, error) {
	o := applyOptions(opts)

	s := &ResourceStore{
		telemetry: newTelemetry(o.instrumentation, "resources"),
		apiNames:  make(map[string]*storage.Resource, len(api)),
		logger:    o.logger,
	}

	var err error
	if s.identity, err = loadResources(identity, storage.ResourceKindIdentity); err != nil {
		return nil, err
	}
	if s.api, err = loadResources(api, storage.ResourceKindAPI); err != nil {
		return nil, err
	}
	for _, r := range s.api {
		s.apiNames[r.Name] = r
	}

	total := int64(len(s.identity) + len(s.api))
	s.registerSize(s.logger, func() int64 { return total })

	s.logger.Debug("Loaded resources",
		"identity_resources", len(s.identity),
		"api_resources", len(s.api))
	return s, nil
}

func loadResources(seed []storage.Resource, kind storage.ResourceKind) ([]*storage.Resource, error) {
	out := make([]*storage.Resource, 0, len(seed))
	seen := make(map[string]struct{}, len(seed))

	for i := range seed {
		r := seed[i].Clone()
		if r.Kind == "" {
			r.Kind = kind
		}
		if r.Kind != kind {
			return nil, fmt.Errorf("%w: %s resource %q seeded as %s", storage.ErrInvalidResource, r.Kind, r.Name, kind)
		}
		if r.Name == "" {
			return nil, fmt.Errorf("%w: %s resource at index %d has no name", storage.ErrInvalidResource, kind, i)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("%w: %s resource %q", storage.ErrDuplicateResource, kind, r.Name)
		}
		seen[r.Name] = struct{}{}
		out = append(out, r)
	}

	return out, nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// FindIdentityResourcesByScope returns the identity resources whose name is in scopeNames.
// Unmatched names are omitted.
func (s *ResourceStore) FindIdentityResourcesByScope(ctx context.Context, scopeNames []string) ([]storage.Resource, error) {
	ctx, span := s.startStorageSpan(ctx, "find_identity_resources")
	defer span.End()

	startTime := time.Now()
	wanted := toSet(scopeNames)

	result := make([]storage.Resource, 0, len(scopeNames))
	for _, r := range s.identity {
		if _, ok := wanted[r.Name]; ok {
			result = append(result, *r.Clone())
		}
	}

	s.recordStorageOperation(ctx, span, "find_identity_resources", nil, len(result) > 0, startTime)
	return result, nil
}

// FindAPIResourcesByScope returns the API resources that own at least one scope in scopeNames.
// Matching is on scope names, not resource names. Each resource appears once.
func (s *ResourceStore) FindAPIResourcesByScope(ctx context.Context, scopeNames []string) ([]storage.Resource, error) {
	ctx, span := s.startStorageSpan(ctx, "find_api_resources")
	defer span.End()

	startTime := time.Now()
	wanted := toSet(scopeNames)

	result := make([]storage.Resource, 0)
	for _, r := range s.api {
		for _, scope := range r.Scopes {
			if _, ok := wanted[scope.Name]; ok {
				result = append(result, *r.Clone())
				break
			}
		}
	}

	s.recordStorageOperation(ctx, span, "find_api_resources", nil, len(result) > 0, startTime)
	return result, nil
}

// FindAPIResource returns the API resource with the given name, or nil when absent
func (s *ResourceStore) FindAPIResource(ctx context.Context, name string) (*storage.Resource, error) {
	ctx, span := s.startStorageSpan(ctx, "find_api_resource")
	defer span.End()

	startTime := time.Now()
	r, ok := s.apiNames[name]
	s.recordStorageOperation(ctx, span, "find_api_resource", nil, ok, startTime)

	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

// GetAllResources returns copies of every loaded resource
func (s *ResourceStore) GetAllResources(ctx context.Context) (*storage.Resources, error) {
	ctx, span := s.startStorageSpan(ctx, "get_all_resources")
	defer span.End()

	startTime := time.Now()
	all := &storage.Resources{
		IdentityResources: make([]storage.Resource, 0, len(s.identity)),
		APIResources:      make([]storage.Resource, 0, len(s.api)),
	}
	for _, r := range s.identity {
		all.IdentityResources = append(all.IdentityResources, *r.Clone())
	}
	for _, r := range s.api {
		all.APIResources = append(all.APIResources, *r.Clone())
	}

	s.recordStorageOperation(ctx, span, "get_all_resources", nil, true, startTime)
	return all, nil
}
