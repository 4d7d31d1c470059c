// Package users provides the user-facing services of the identity store:
//
//   - ProfileService projects a user's claims and reports whether the user is active
//   - PasswordValidator validates resource owner password credentials
//   - LoginService checks local credentials and links or provisions external logins
//
// SECURITY: PasswordValidator returns one failure shape for every failure
// reason and always performs one bcrypt comparison, so callers cannot tell an
// unknown username from a wrong password by response content or timing.
// The actual reason is only written to the audit log with the username hashed.
package users
