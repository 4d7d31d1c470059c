// Package memory provides in-memory implementations of the storage interfaces.
//
// Clients, resources and users are seeded once at startup and copied on
// ingestion; lookups return copies so callers never hold references into
// store-owned maps. ClientStore can be reloaded atomically.
//
// GrantStore is the read-write hot path. Grant keys are hashed with xxhash onto
// independently locked shards. Expiration is checked on every read; a background
// sweep reclaims memory but correctness never depends on it.
//
// Features:
//   - Per-key atomic store, get, take (read-and-delete) and remove
//   - Bulk revocation by subject, client and grant type
//   - Optional grant payload encryption at rest via security.Encryptor
//   - Optional capacity limit (storage.ErrStoreFull)
//   - Audit logging via security.Auditor, tracing and metrics via instrumentation
//
// Example usage:
//
//	grants := memory.NewGrantStore(memory.WithCleanupInterval(time.Minute))
//	defer grants.Close()
//
//	_ = grants.StoreGrant(ctx, &storage.PersistedGrant{
//		Key:        key,
//		Type:       storage.GrantTypeAuthorizationCode,
//		ClientID:   "app1",
//		SubjectID:  "alice",
//		Expiration: time.Now().Add(5 * time.Minute),
//	})
package memory
