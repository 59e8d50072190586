// Package auth is the login front of Gobang Online. It checks credentials
// against the user directory, rejects a second concurrent sign-in of the same
// identity through the shared presence registry, and hands out opaque session
// tokens that the websocket endpoint turns back into identities.
package auth
