package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/identity-store/storage"
)

// UserStore is an in-memory user store.
// Seeded users are immutable; AddUser appends auto-provisioned users.
type UserStore struct {
	telemetry

	mu         sync.RWMutex
	bySubject  map[string]*storage.User
	byUsername map[string]*storage.User
	byProvider map[providerKey]*storage.User

	logger *slog.Logger
}

type providerKey struct {
	provider string
	subject  string
}

var (
	_ storage.UserStore  = (*UserStore)(nil)
	_ storage.UserWriter = (*UserStore)(nil)
)

// NewUserStore creates a user store from copies of users.
// Empty or duplicate subject IDs and duplicate usernames are rejected.
func NewUserStore(users []storage.User, opts ...Option) (*UserStore, error) {
	o := applyOptions(opts)

	s := &UserStore{
		telemetry:  newTelemetry(o.instrumentation, "users"),
		bySubject:  make(map[string]*storage.User, len(users)),
		byUsername: make(map[string]*storage.User, len(users)),
		byProvider: make(map[providerKey]*storage.User),
		logger:     o.logger,
	}

	for i := range users {
		if err := s.add(users[i].Clone()); err != nil {
			return nil, err
		}
	}

	s.registerSize(s.logger, func() int64 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return int64(len(s.bySubject))
	})

	s.logger.Debug("Loaded users", "count", len(users))
	return s, nil
}

// add indexes u. Callers hold mu or own s exclusively.
func (s *UserStore) add(u *storage.User) error {
	if u.SubjectID == "" {
		return fmt.Errorf("%w: subject id is required", storage.ErrInvalidUser)
	}
	if _, exists := s.bySubject[u.SubjectID]; exists {
		return fmt.Errorf("%w: subject %s", storage.ErrDuplicateUser, u.SubjectID)
	}
	if u.Username != "" {
		if _, exists := s.byUsername[u.Username]; exists {
			return fmt.Errorf("%w: username %s", storage.ErrDuplicateUser, u.Username)
		}
	}
	pk := providerKey{u.ProviderName, u.ProviderSubjectID}
	if u.ProviderName != "" {
		if _, exists := s.byProvider[pk]; exists {
			return fmt.Errorf("%w: external login %s", storage.ErrDuplicateUser, u.ProviderName)
		}
	}

	s.bySubject[u.SubjectID] = u
	if u.Username != "" {
		s.byUsername[u.Username] = u
	}
	if u.ProviderName != "" {
		s.byProvider[pk] = u
	}
	return nil
}

// FindBySubject returns a copy of the user with the given subject ID, or nil when absent
func (s *UserStore) FindBySubject(ctx context.Context, subjectID string) (*storage.User, error) {
	return s.find(ctx, "find_user_by_subject", func() *storage.User { return s.bySubject[subjectID] })
}

// FindByUsername returns a copy of the user with the exact username, or nil when absent
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*storage.User, error) {
	if username == "" {
		return nil, nil
	}
	return s.find(ctx, "find_user_by_username", func() *storage.User { return s.byUsername[username] })
}

// FindByExternalProvider returns the user linked to the external login, or nil when absent
func (s *UserStore) FindByExternalProvider(ctx context.Context, providerName, providerSubjectID string) (*storage.User, error) {
	if providerName == "" {
		return nil, nil
	}
	return s.find(ctx, "find_user_by_provider", func() *storage.User {
		return s.byProvider[providerKey{providerName, providerSubjectID}]
	})
}

func (s *UserStore) find(ctx context.Context, operation string, lookup func() *storage.User) (*storage.User, error) {
	ctx, span := s.startStorageSpan(ctx, operation)
	defer span.End()

	startTime := time.Now()

	s.mu.RLock()
	u := lookup()
	s.mu.RUnlock()

	s.recordStorageOperation(ctx, span, operation, nil, u != nil, startTime)
	return u.Clone(), nil
}

// AddUser stores a copy of user. Subject IDs, usernames and external logins must be unique.
func (s *UserStore) AddUser(ctx context.Context, user *storage.User) error {
	ctx, span := s.startStorageSpan(ctx, "add_user")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "add_user", err, true, startTime)
	}()

	if user == nil {
		err = fmt.Errorf("%w: user is nil", storage.ErrInvalidUser)
		return err
	}

	s.mu.Lock()
	err = s.add(user.Clone())
	s.mu.Unlock()

	if err == nil {
		s.logger.Debug("Added user", "provider", user.ProviderName)
	}
	return err
}

// Len returns the number of users
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySubject)
}
