// Package testutil provides testing utilities and test fixtures for the identity store.
// It includes a controllable clock for deterministic expiry tests and helpers
// for building clients, grants and users.
package testutil
