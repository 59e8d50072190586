// Package service provides the session coordinator for Gobang Online.
//
// The service package implements:
//   - Presence registration for every connection (lobby or room)
//   - Seating players and observers in rooms, and dropping empty rooms
//   - Ready-up and move handling with per-room serialization
//   - Read-only user and room projections joined with the user directory
//   - Chat relays (public to everyone, private to one room)
//
// Core Interfaces:
//
// Coordinator is the façade invoked by the transport for every inbound event.
// Broadcaster is the transport contract it talks back through: unicast to one
// connection, broadcast to every connection, or broadcast to one room.
// Directory resolves persisted user records for the queries.
//
// Ordering:
//
// Every mutation of a room, the snapshot taken right after it and the
// broadcasts built from that snapshot run inside the room's sequence lock.
// Clients therefore observe room updates in mutation order, and the
// room-scoped update for an event always precedes the global one. Directory
// lookups for queries run with no lock held, concurrently through an
// errgroup.
//
// Errors:
//
// Rule violations (room.RuleError) are unicast to the requester as a failure
// event carrying the reason. Consistency violations are logged at error
// level and the operation is dropped without any broadcast. Directory
// failures are answered to the requester with an error payload.
//
// Usage:
//
//	reg := presence.NewRegistry()
//	coord := service.NewCoordinator(hub, users, reg,
//		service.WithLogger(logger),
//		service.WithMetricsRegistry(prometheus.NewRegistry()),
//	)
//	hub.SetCoordinator(coord)
package service
