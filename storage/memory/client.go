package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/identity-store/security"
	"github.com/giantswarm/identity-store/storage"
)

// dummySecretHash is compared when a client is unknown or has no live secret,
// so validation always costs one bcrypt comparison (bcrypt hash of "test").
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type clientSnapshot struct {
	byID    map[string]*storage.Client
	ordered []*storage.Client
}

// ClientStore is a read-mostly in-memory client store.
// Lookups read an immutable snapshot; Reload swaps the snapshot atomically.
type ClientStore struct {
	telemetry

	snapshot atomic.Pointer[clientSnapshot]

	// mu serializes Reload and guards subscribers
	mu          sync.Mutex
	subscribers []func()

	clock   func() time.Time
	auditor *security.Auditor
	logger  *slog.Logger
}

var (
	_ storage.ClientStore  = (*ClientStore)(nil)
	_ storage.ClientLister = (*ClientStore)(nil)
)

// NewClientStore creates a client store seeded with clients.
// The seed is copied; empty or duplicate client IDs are rejected.
func NewClientStore(clients []storage.Client, opts ...Option) (*ClientStore, error) {
	o := applyOptions(opts)

	snap, err := buildClientSnapshot(clients)
	if err != nil {
		return nil, err
	}

	s := &ClientStore{
		telemetry: newTelemetry(o.instrumentation, "clients"),
		clock:     o.clock,
		auditor:   o.auditor,
		logger:    o.logger,
	}
	s.snapshot.Store(snap)
	s.registerSize(s.logger, func() int64 { return int64(len(s.snapshot.Load().ordered)) })

	s.logger.Debug("Loaded clients", "count", len(snap.ordered))
	return s, nil
}

func buildClientSnapshot(clients []storage.Client) (*clientSnapshot, error) {
	snap := &clientSnapshot{
		byID:    make(map[string]*storage.Client, len(clients)),
		ordered: make([]*storage.Client, 0, len(clients)),
	}

	for i := range clients {
		c := clients[i].Clone()
		if c.ClientID == "" {
			return nil, fmt.Errorf("%w: client at index %d has no client id", storage.ErrInvalidClient, i)
		}
		if _, exists := snap.byID[c.ClientID]; exists {
			return nil, fmt.Errorf("%w: %s", storage.ErrDuplicateClient, c.ClientID)
		}
		snap.byID[c.ClientID] = c
		snap.ordered = append(snap.ordered, c)
	}

	return snap, nil
}

// FindClientByID returns a copy of the client with the exact given ID, or nil when absent
func (s *ClientStore) FindClientByID(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "find_client")
	defer span.End()

	startTime := time.Now()
	client, ok := s.snapshot.Load().byID[clientID]
	s.recordStorageOperation(ctx, span, "find_client", nil, ok, startTime)

	if !ok {
		return nil, nil
	}
	return client.Clone(), nil
}

// ListClients returns copies of all loaded clients in seed order
func (s *ClientStore) ListClients(ctx context.Context) ([]storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "list_clients")
	defer span.End()

	startTime := time.Now()
	snap := s.snapshot.Load()

	clients := make([]storage.Client, 0, len(snap.ordered))
	for _, c := range snap.ordered {
		clients = append(clients, *c.Clone())
	}

	s.recordStorageOperation(ctx, span, "list_clients", nil, true, startTime)
	return clients, nil
}

// Len returns the number of loaded clients
func (s *ClientStore) Len() int {
	return len(s.snapshot.Load().ordered)
}

// Reload atomically replaces the client set and notifies OnChange subscribers.
// On a validation error the current set is kept.
func (s *ClientStore) Reload(clients []storage.Client) error {
	snap, err := buildClientSnapshot(clients)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot.Store(snap)
	subscribers := append([]func(){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn()
	}

	s.auditor.LogClientSetReloaded(len(snap.ordered))
	s.logger.Info("Reloaded clients", "count", len(snap.ordered))
	return nil
}

// OnChange registers fn to run after every Reload
func (s *ClientStore) OnChange(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// ValidateClientSecret reports whether secret matches one of the client's live secrets.
// Unknown clients, disabled clients and clients without live secrets yield false.
// SECURITY: At least one bcrypt comparison runs on every path so response timing
// does not reveal whether the client exists.
func (s *ClientStore) ValidateClientSecret(ctx context.Context, clientID, secret string) (bool, error) {
	ctx, span := s.startStorageSpan(ctx, "validate_client_secret")
	defer span.End()

	startTime := time.Now()
	client, ok := s.snapshot.Load().byID[clientID]
	defer func() {
		s.recordStorageOperation(ctx, span, "validate_client_secret", nil, ok, startTime)
	}()

	now := s.clock()
	compared := false
	matched := false

	if ok {
		for _, sec := range client.ClientSecrets {
			if sec.Value == "" || security.IsExpiredAt(sec.Expiration, now) {
				continue
			}
			compared = true
			if bcrypt.CompareHashAndPassword([]byte(sec.Value), []byte(secret)) == nil {
				matched = true
				break
			}
		}
	}

	if !compared {
		_ = bcrypt.CompareHashAndPassword([]byte(dummySecretHash), []byte(secret))
	}

	return ok && client.Enabled && matched, nil
}
