// Package presence tracks which identities are connected and which rooms
// each of them participates in.
//
// An identity may hold several connections at once (one per browser tab).
// The Registry counts them per room, so only the first connection to a room
// yields a join notice and only the last disconnect yields a leave notice.
// The lobby is recorded as the empty room name.
//
// Sign-in uniqueness:
//
// An identity is signed in while it has at least one membership entry. The
// login path calls Claim, which checks and reserves the identity under the
// same lock Register and Unregister take, so two concurrent logins of one
// identity cannot both succeed. The claim is consumed by the first Register
// or expires after the configured TTL if the client never connects.
//
// Usage:
//
//	reg := presence.NewRegistry(presence.WithClaimTTL(30 * time.Second))
//	if err := reg.Claim("alice"); err != nil {
//		// reject login
//	}
//	change := reg.Register("alice", "R1") // "alice joined room R1."
//	change = reg.Unregister("alice", "R1") // change.SignedOut == true
package presence
