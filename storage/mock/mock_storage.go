// Package mock provides mock implementations of storage interfaces for testing.
//
// Every mock keeps its records in memory and exposes one overridable function
// per method, so tests can inject errors or observe calls. CallCounts records
// how often each method was called.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/giantswarm/identity-store/storage"
)

type callCounter struct {
	mu         sync.Mutex
	CallCounts map[string]int
}

func (c *callCounter) count(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CallCounts == nil {
		c.CallCounts = make(map[string]int)
	}
	c.CallCounts[method]++
}

// Calls returns how many times method was called
func (c *callCounter) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCounts[method]
}

// MockClientStore is a mock implementation of ClientStore and ClientLister for testing
type MockClientStore struct {
	callCounter

	mu      sync.RWMutex
	clients []storage.Client

	FindClientByIDFunc func(ctx context.Context, clientID string) (*storage.Client, error)
	ListClientsFunc    func(ctx context.Context) ([]storage.Client, error)
}

var (
	_ storage.ClientStore  = (*MockClientStore)(nil)
	_ storage.ClientLister = (*MockClientStore)(nil)
)

// NewMockClientStore creates a new mock client store holding clients
func NewMockClientStore(clients ...storage.Client) *MockClientStore {
	m := &MockClientStore{clients: clients}

	// Set default implementations
	m.FindClientByIDFunc = func(_ context.Context, clientID string) (*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for i := range m.clients {
			if m.clients[i].ClientID == clientID {
				return m.clients[i].Clone(), nil
			}
		}
		return nil, nil
	}

	m.ListClientsFunc = func(context.Context) ([]storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return append([]storage.Client(nil), m.clients...), nil
	}

	return m
}

// FindClientByID calls FindClientByIDFunc
func (m *MockClientStore) FindClientByID(ctx context.Context, clientID string) (*storage.Client, error) {
	m.count("FindClientByID")
	return m.FindClientByIDFunc(ctx, clientID)
}

// ListClients calls ListClientsFunc
func (m *MockClientStore) ListClients(ctx context.Context) ([]storage.Client, error) {
	m.count("ListClients")
	return m.ListClientsFunc(ctx)
}

// MockResourceStore is a mock implementation of ResourceStore for testing
type MockResourceStore struct {
	callCounter

	FindIdentityResourcesByScopeFunc func(ctx context.Context, scopeNames []string) ([]storage.Resource, error)
	FindAPIResourcesByScopeFunc      func(ctx context.Context, scopeNames []string) ([]storage.Resource, error)
	FindAPIResourceFunc              func(ctx context.Context, name string) (*storage.Resource, error)
	GetAllResourcesFunc              func(ctx context.Context) (*storage.Resources, error)
}

var _ storage.ResourceStore = (*MockResourceStore)(nil)

// NewMockResourceStore creates a new mock resource store over the given resources
func NewMockResourceStore(identity, api []storage.Resource) *MockResourceStore {
	m := &MockResourceStore{}

	m.FindIdentityResourcesByScopeFunc = func(_ context.Context, scopeNames []string) ([]storage.Resource, error) {
		var out []storage.Resource
		for _, r := range identity {
			if contains(scopeNames, r.Name) {
				out = append(out, r)
			}
		}
		return out, nil
	}

	m.FindAPIResourcesByScopeFunc = func(_ context.Context, scopeNames []string) ([]storage.Resource, error) {
		var out []storage.Resource
		for _, r := range api {
			for _, s := range r.Scopes {
				if contains(scopeNames, s.Name) {
					out = append(out, r)
					break
				}
			}
		}
		return out, nil
	}

	m.FindAPIResourceFunc = func(_ context.Context, name string) (*storage.Resource, error) {
		for i := range api {
			if api[i].Name == name {
				return api[i].Clone(), nil
			}
		}
		return nil, nil
	}

	m.GetAllResourcesFunc = func(context.Context) (*storage.Resources, error) {
		return &storage.Resources{IdentityResources: identity, APIResources: api}, nil
	}

	return m
}

// FindIdentityResourcesByScope calls FindIdentityResourcesByScopeFunc
func (m *MockResourceStore) FindIdentityResourcesByScope(ctx context.Context, scopeNames []string) ([]storage.Resource, error) {
	m.count("FindIdentityResourcesByScope")
	return m.FindIdentityResourcesByScopeFunc(ctx, scopeNames)
}

// FindAPIResourcesByScope calls FindAPIResourcesByScopeFunc
func (m *MockResourceStore) FindAPIResourcesByScope(ctx context.Context, scopeNames []string) ([]storage.Resource, error) {
	m.count("FindAPIResourcesByScope")
	return m.FindAPIResourcesByScopeFunc(ctx, scopeNames)
}

// FindAPIResource calls FindAPIResourceFunc
func (m *MockResourceStore) FindAPIResource(ctx context.Context, name string) (*storage.Resource, error) {
	m.count("FindAPIResource")
	return m.FindAPIResourceFunc(ctx, name)
}

// GetAllResources calls GetAllResourcesFunc
func (m *MockResourceStore) GetAllResources(ctx context.Context) (*storage.Resources, error) {
	m.count("GetAllResources")
	return m.GetAllResourcesFunc(ctx)
}

// MockUserStore is a mock implementation of UserStore and UserWriter for testing
type MockUserStore struct {
	callCounter

	mu    sync.RWMutex
	users []storage.User

	FindBySubjectFunc          func(ctx context.Context, subjectID string) (*storage.User, error)
	FindByUsernameFunc         func(ctx context.Context, username string) (*storage.User, error)
	FindByExternalProviderFunc func(ctx context.Context, providerName, providerSubjectID string) (*storage.User, error)
	AddUserFunc                func(ctx context.Context, user *storage.User) error
}

var (
	_ storage.UserStore  = (*MockUserStore)(nil)
	_ storage.UserWriter = (*MockUserStore)(nil)
)

// NewMockUserStore creates a new mock user store holding users
func NewMockUserStore(users ...storage.User) *MockUserStore {
	m := &MockUserStore{users: append([]storage.User(nil), users...)}

	find := func(match func(u *storage.User) bool) *storage.User {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for i := range m.users {
			if match(&m.users[i]) {
				return m.users[i].Clone()
			}
		}
		return nil
	}

	m.FindBySubjectFunc = func(_ context.Context, subjectID string) (*storage.User, error) {
		return find(func(u *storage.User) bool { return u.SubjectID == subjectID }), nil
	}
	m.FindByUsernameFunc = func(_ context.Context, username string) (*storage.User, error) {
		return find(func(u *storage.User) bool { return u.Username == username }), nil
	}
	m.FindByExternalProviderFunc = func(_ context.Context, providerName, providerSubjectID string) (*storage.User, error) {
		return find(func(u *storage.User) bool {
			return u.ProviderName == providerName && u.ProviderSubjectID == providerSubjectID
		}), nil
	}
	m.AddUserFunc = func(_ context.Context, user *storage.User) error {
		if user == nil || user.SubjectID == "" {
			return fmt.Errorf("%w: missing subject", storage.ErrInvalidUser)
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		for i := range m.users {
			if m.users[i].SubjectID == user.SubjectID {
				return fmt.Errorf("%w: subject %s", storage.ErrDuplicateUser, user.SubjectID)
			}
			if user.Username != "" && m.users[i].Username == user.Username {
				return fmt.Errorf("%w: username %s", storage.ErrDuplicateUser, user.Username)
			}
		}
		m.users = append(m.users, *user.Clone())
		return nil
	}

	return m
}

// FindBySubject calls FindBySubjectFunc
func (m *MockUserStore) FindBySubject(ctx context.Context, subjectID string) (*storage.User, error) {
	m.count("FindBySubject")
	return m.FindBySubjectFunc(ctx, subjectID)
}

// FindByUsername calls FindByUsernameFunc
func (m *MockUserStore) FindByUsername(ctx context.Context, username string) (*storage.User, error) {
	m.count("FindByUsername")
	return m.FindByUsernameFunc(ctx, username)
}

// FindByExternalProvider calls FindByExternalProviderFunc
func (m *MockUserStore) FindByExternalProvider(ctx context.Context, providerName, providerSubjectID string) (*storage.User, error) {
	m.count("FindByExternalProvider")
	return m.FindByExternalProviderFunc(ctx, providerName, providerSubjectID)
}

// AddUser calls AddUserFunc
func (m *MockUserStore) AddUser(ctx context.Context, user *storage.User) error {
	m.count("AddUser")
	return m.AddUserFunc(ctx, user)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
