// Package room implements the two-player rooms of Gobang Online.
//
// The room package implements:
//   - Player slots (player1, player2) and an unordered observer set
//   - Per-player readiness and the shared waiting/started game state
//   - Turn alternation and an append-only move log on a 15x15 board
//   - A registry that creates rooms lazily and drops them when empty
//
// Core Types:
//
// Room owns membership and game state behind its own mutex, so operations on
// unrelated rooms never contend. Registry maps room names to rooms.
//
// Game Flow:
//
//	waiting --(both players ready)--> started
//	started --(a player leaves)-----> waiting
//
// A game starts only when both seated players are ready; starting resets the
// turn to player1 and clears the move log. Any player leaving resets both
// players' readiness and abandons a game in progress.
//
// Errors:
//
// User-caused rejections are *RuleError values whose message is the reason
// sent to the client ("not your turn", "click out of range", ...). A started
// room with an empty slot yields ErrInconsistentState, which callers treat as
// an internal fault rather than a user error.
//
// Usage:
//
//	rooms := room.NewRegistry()
//	r, _ := rooms.GetOrCreate("R1")
//	r.AddUser("alice")
//	r.AddUser("bob")
//	r.TryReady("alice")
//	started, err := r.TryReady("bob")
//	move, err := r.TryMove("alice", 8, 8)
package room
