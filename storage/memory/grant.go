package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/internal/util"
	"github.com/giantswarm/identity-store/security"
	"github.com/giantswarm/identity-store/storage"
)

// grantShard holds the grants whose keys hash onto it
type grantShard struct {
	mu     sync.RWMutex
	grants map[string]*storage.PersistedGrant
}

// GrantStore is an in-memory persisted grant store.
//
// Keys are spread over independently locked shards, so operations on different
// keys do not contend on a global lock. Every read path re-checks expiration;
// the background sweep only reclaims memory.
type GrantStore struct {
	telemetry

	shards []*grantShard
	count  atomic.Int64

	maxGrants int64
	clock     func() time.Time
	encryptor *security.Encryptor
	auditor   *security.Auditor
	logger    *slog.Logger

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	closeOnce       sync.Once
}

var _ storage.PersistedGrantStore = (*GrantStore)(nil)

// NewGrantStore creates a grant store and starts its background sweep
// unless the cleanup interval is disabled. Call Close to stop it.
func NewGrantStore(opts ...Option) *GrantStore {
	o := applyOptions(opts)

	s := &GrantStore{
		telemetry:       newTelemetry(o.instrumentation, "grants"),
		shards:          make([]*grantShard, o.shardCount),
		maxGrants:       int64(o.maxGrants),
		clock:           o.clock,
		encryptor:       o.encryptor,
		auditor:         o.auditor,
		logger:          o.logger,
		cleanupInterval: o.cleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &grantShard{grants: make(map[string]*storage.PersistedGrant)}
	}

	if s.encryptor.IsEnabled() {
		s.logger.Info("Grant payload encryption at rest enabled")
	}

	s.registerSize(s.logger, s.count.Load)

	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	} else {
		close(s.cleanupDone)
	}

	return s
}

func (s *GrantStore) shardFor(key string) *grantShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Len returns the number of grants held, including expired grants not yet purged
func (s *GrantStore) Len() int {
	return int(s.count.Load())
}

// Close stops the background sweep and waits for it to exit. It is safe to call more than once.
func (s *GrantStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
	})
	<-s.cleanupDone
}

// StoreGrant inserts or overwrites the grant with grant.Key.
// The grant is copied; the payload is encrypted when an encryptor is configured.
func (s *GrantStore) StoreGrant(ctx context.Context, grant *storage.PersistedGrant) error {
	ctx, span := s.startStorageSpan(ctx, "store_grant")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "store_grant", err, true, startTime)
	}()

	if grant == nil {
		err = fmt.Errorf("%w: grant is nil", storage.ErrInvalidGrant)
		return err
	}
	if grant.Key == "" {
		err = fmt.Errorf("%w: grant key is empty", storage.ErrInvalidGrant)
		return err
	}
	if grant.Type == "" {
		err = fmt.Errorf("%w: grant type is empty", storage.ErrInvalidGrant)
		return err
	}
	instrumentation.AddGrantAttributes(span, string(grant.Type), grant.ClientID)

	stored := grant.Clone()
	if s.encryptor.IsEnabled() {
		// The key is bound as associated data so a payload cannot be replayed under another key.
		stored.Data, err = s.encryptor.Seal(grant.Data, grant.Key)
		if err != nil {
			err = fmt.Errorf("failed to encrypt grant payload: %w", err)
			return err
		}
	}

	if s.maxGrants > 0 && s.count.Load() >= s.maxGrants {
		s.Sweep()
	}

	shard := s.shardFor(grant.Key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, exists := shard.grants[grant.Key]; !exists {
		if s.maxGrants > 0 && s.count.Add(1) > s.maxGrants {
			s.count.Add(-1)
			err = fmt.Errorf("%w: %d grants", storage.ErrStoreFull, s.maxGrants)
			s.logger.Warn("Grant store full, rejecting grant",
				"grant_type", grant.Type,
				"max_grants", s.maxGrants)
			return err
		}
		if s.maxGrants == 0 {
			s.count.Add(1)
		}
	}

	shard.grants[grant.Key] = stored

	s.logger.Debug("Stored grant",
		"grant_key", util.TruncateKey(grant.Key),
		"grant_type", grant.Type,
		"client_id", grant.ClientID)

	return nil
}

// GetGrant returns a copy of the live grant for key, or nil when absent or expired.
// An expired grant found here is purged.
func (s *GrantStore) GetGrant(ctx context.Context, key string) (*storage.PersistedGrant, error) {
	ctx, span := s.startStorageSpan(ctx, "get_grant")
	defer span.End()

	startTime := time.Now()
	var err error
	var result *storage.PersistedGrant

	defer func() {
		s.recordStorageOperation(ctx, span, "get_grant", err, result != nil, startTime)
	}()

	shard := s.shardFor(key)
	shard.mu.RLock()
	grant, ok := shard.grants[key]
	shard.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if security.IsExpiredAt(grant.Expiration, s.clock()) {
		s.purgeExpired(ctx, shard, key, grant)
		return nil, nil
	}

	result, err = s.open(grant)
	return result, err
}

// TakeGrant atomically removes the grant for key and returns it if it was live.
// Only one of several concurrent callers for the same key receives the grant.
func (s *GrantStore) TakeGrant(ctx context.Context, key string) (*storage.PersistedGrant, error) {
	ctx, span := s.startStorageSpan(ctx, "take_grant")
	defer span.End()

	startTime := time.Now()
	var err error
	var result *storage.PersistedGrant

	defer func() {
		s.recordStorageOperation(ctx, span, "take_grant", err, result != nil, startTime)
	}()

	shard := s.shardFor(key)
	shard.mu.Lock()
	grant, ok := shard.grants[key]
	if ok {
		delete(shard.grants, key)
		s.count.Add(-1)
	}
	shard.mu.Unlock()

	if !ok {
		return nil, nil
	}

	if security.IsExpiredAt(grant.Expiration, s.clock()) {
		s.logExpired(ctx, grant)
		return nil, nil
	}

	result, err = s.open(grant)
	if err != nil {
		return nil, err
	}

	s.auditor.LogGrantRedeemed(key, string(grant.Type), grant.SubjectID, grant.ClientID)
	return result, nil
}

// GetAllGrants returns copies of all live grants of subjectID, ordered by creation time.
// Expired grants met on the way are purged.
func (s *GrantStore) GetAllGrants(ctx context.Context, subjectID string) ([]storage.PersistedGrant, error) {
	ctx, span := s.startStorageSpan(ctx, "get_all_grants")
	defer span.End()

	startTime := time.Now()
	var err error
	result := make([]storage.PersistedGrant, 0)

	defer func() {
		s.recordStorageOperation(ctx, span, "get_all_grants", err, len(result) > 0, startTime)
	}()

	if subjectID == "" {
		return result, nil
	}

	now := s.clock()
	for _, shard := range s.shards {
		var expired []*storage.PersistedGrant

		shard.mu.RLock()
		for _, grant := range shard.grants {
			if grant.SubjectID != subjectID {
				continue
			}
			if security.IsExpiredAt(grant.Expiration, now) {
				expired = append(expired, grant)
				continue
			}
			opened, openErr := s.open(grant)
			if openErr != nil {
				shard.mu.RUnlock()
				err = openErr
				return nil, err
			}
			result = append(result, *opened)
		}
		shard.mu.RUnlock()

		for _, grant := range expired {
			s.purgeExpired(ctx, shard, grant.Key, grant)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreationTime.Equal(result[j].CreationTime) {
			return result[i].CreationTime.Before(result[j].CreationTime)
		}
		return result[i].Key < result[j].Key
	})

	return result, nil
}

// RemoveGrant deletes the grant for key. Removing an absent key is not an error.
func (s *GrantStore) RemoveGrant(ctx context.Context, key string) error {
	ctx, span := s.startStorageSpan(ctx, "remove_grant")
	defer span.End()

	startTime := time.Now()

	shard := s.shardFor(key)
	shard.mu.Lock()
	_, ok := shard.grants[key]
	if ok {
		delete(shard.grants, key)
		s.count.Add(-1)
	}
	shard.mu.Unlock()

	if ok {
		s.logger.Debug("Removed grant", "grant_key", util.TruncateKey(key))
	}

	s.recordStorageOperation(ctx, span, "remove_grant", nil, ok, startTime)
	return nil
}

// RemoveAllGrants deletes every grant of filter.SubjectID that also matches the
// optional client and type, live or expired, and returns how many were removed.
func (s *GrantStore) RemoveAllGrants(ctx context.Context, filter storage.GrantFilter) (int, error) {
	ctx, span := s.startStorageSpan(ctx, "remove_all_grants")
	defer span.End()

	startTime := time.Now()
	var err error
	removed := 0

	defer func() {
		s.recordStorageOperation(ctx, span, "remove_all_grants", err, removed > 0, startTime)
	}()

	if filter.SubjectID == "" {
		err = fmt.Errorf("%w: subject id is required", storage.ErrInvalidFilter)
		return 0, err
	}

	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, grant := range shard.grants {
			if filter.Matches(grant) {
				delete(shard.grants, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	s.count.Add(int64(-removed))

	if removed > 0 {
		s.auditor.LogGrantsRevoked(filter.SubjectID, filter.ClientID, string(filter.Type), removed)
		s.logger.Info("Revoked grants",
			"subject_hash", util.HashForLogging(filter.SubjectID),
			"client_id", filter.ClientID,
			"grant_type", filter.Type,
			"count", removed)
	}

	return removed, nil
}

// Sweep removes every expired grant and returns how many were removed
func (s *GrantStore) Sweep() int {
	now := s.clock()
	swept := 0

	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, grant := range shard.grants {
			if security.IsExpiredAt(grant.Expiration, now) {
				delete(shard.grants, key)
				swept++
			}
		}
		shard.mu.Unlock()
	}
	s.count.Add(int64(-swept))

	if swept > 0 {
		s.logger.Debug("Swept expired grants", "count", swept)
		if s.instrumentation != nil {
			s.instrumentation.Metrics().RecordGrantsSwept(context.Background(), swept)
		}
	}

	return swept
}

// ============================================================
// Helpers
// ============================================================

// open returns a copy of grant with its payload decrypted
func (s *GrantStore) open(grant *storage.PersistedGrant) (*storage.PersistedGrant, error) {
	out := grant.Clone()
	if !s.encryptor.IsEnabled() {
		return out, nil
	}

	data, err := s.encryptor.Open(grant.Data, grant.Key)
	if err != nil {
		s.logger.Error("Failed to decrypt grant payload",
			"grant_key", util.TruncateKey(grant.Key),
			"error", err)
		return nil, fmt.Errorf("%w: %v", storage.ErrPayloadCorrupted, err)
	}
	out.Data = data
	return out, nil
}

// purgeExpired deletes key if it still maps to the expired record read earlier.
// A concurrent StoreGrant that replaced the record wins.
func (s *GrantStore) purgeExpired(ctx context.Context, shard *grantShard, key string, expired *storage.PersistedGrant) {
	shard.mu.Lock()
	current, ok := shard.grants[key]
	if ok && current == expired {
		delete(shard.grants, key)
		s.count.Add(-1)
	}
	shard.mu.Unlock()

	if ok && current == expired {
		s.logExpired(ctx, expired)
	}
}

func (s *GrantStore) logExpired(ctx context.Context, grant *storage.PersistedGrant) {
	s.logger.Debug("Grant not returned",
		"reason", "expired",
		"grant_key", util.TruncateKey(grant.Key),
		"grant_type", grant.Type,
		"expired_at", grant.Expiration)

	s.auditor.LogExpiredGrantAccess(grant.Key, string(grant.Type), grant.SubjectID, grant.ClientID)
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordGrantExpiredOnRead(ctx, string(grant.Type))
	}
}

// ============================================================
// Cleanup
// ============================================================

func (s *GrantStore) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
