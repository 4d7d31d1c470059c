// Package util provides small helpers shared by the identity-store packages.
//
// Key utilities:
//   - SafeTruncate: truncates opaque values (grant keys, secrets) before logging
//   - HashForLogging: stable, non-reversible fingerprint of a sensitive value
package util
