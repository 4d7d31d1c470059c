// Package storage provides the data model and interfaces of the identity store.
//
// The storage package defines the store interfaces consumed by the protocol layer:
//   - ClientStore: Resolves registered OAuth clients by ID
//   - ResourceStore: Resolves identity and API resources by scope
//   - PersistedGrantStore: Manages expiring authorization codes, refresh tokens, consents and device codes
//   - UserStore: Resolves users by subject, username or external login
//
// Not-found is a normal result (a nil record and a nil error). Errors are
// reserved for store-internal failures and wrap the sentinels declared here.
//
// Implementations are provided in subpackages:
//   - storage/memory: In-memory stores
//   - storage/caching: Caching decorators for client and resource lookups
//   - storage/mock: Mock stores for unit testing
package storage
