// Package identitystore provides the in-memory persistence layer of an OpenID
// Connect / OAuth2 identity provider.
//
// New wires the stores from a Seed and a Config:
//
//   - Clients: registered OAuth clients (optionally cached, reloadable)
//   - Resources: identity and API resources (optionally cached)
//   - Grants: persisted grants with lazy expiry and a background sweep
//   - Users: local users and external login links
//   - CORS: the allowed-origin predicate over all clients
//   - Profiles, Passwords, Logins: user services on top of the user store
//
// Basic usage:
//
//	stores, err := identitystore.New(identitystore.Config{
//		Cache:    identitystore.CacheConfig{Enabled: true},
//		Security: identitystore.SecurityConfig{EnableAuditLogging: true},
//	}, identitystore.Seed{Clients: clients, Users: users})
//	if err != nil {
//		return err
//	}
//	defer stores.Close()
//
//	client, err := stores.Clients.FindClientByID(ctx, "app1")
//
// Lookups never report absence as an error: an unknown client, resource,
// user or grant yields a nil record. Expired grants are indistinguishable
// from absent ones.
package identitystore
