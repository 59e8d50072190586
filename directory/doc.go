// Package directory provides the user directory: persisted user records
// (username, score, password) looked up by identity.
//
// Three Store implementations are available:
//   - Memory: an in-process map, seeded at startup
//   - File: one JSON document per user under a directory
//   - Redis: one hash per user, keyed by a configurable prefix
//
// The coordinator only needs the read side (Directory.FindByIdentity) for
// list and info queries. The login handler uses Authenticator.
//
// Errors:
//
// ErrUserNotFound is returned for unknown identities by every backend.
// Backend failures are wrapped with %w so callers can still match them.
package directory
