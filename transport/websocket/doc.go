// Package websocket provides the realtime transport for Gobang Online.
//
// The websocket package implements:
//   - The service.Broadcaster contract: unicast, broadcast to all, broadcast to a room
//   - Connection lifecycle management with exactly-once disconnect reporting
//   - Decoding of inbound client frames into coordinator calls
//   - Slow-client eviction when a send buffer fills up
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read pump
// and a write pump goroutine. Registration, removal and fan-out all happen on
// the hub's Run goroutine, which keeps every client's frame order equal to
// the order the coordinator issued them.
//
// Message Protocol:
//
// Frames are JSON-encoded:
//   - Incoming: {"event": "user click", "room": "R1", "x": 8, "y": 8}
//   - Incoming: {"event": "public message", "data": "hello"}
//   - Outgoing: {"event": "room update", "data": {...room snapshot...}}
//
// Room Affiliation:
//
// A connection belongs to the room given by the room query parameter, or else
// the /room/<name> page in its Referer header. Without either it sits in the
// lobby. The affiliation is fixed for the life of the connection.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithLogger(logger))
//	coord := service.NewCoordinator(hub, users, presenceRegistry)
//	hub.SetCoordinator(coord)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, identity, websocket.RoomFromRequest(r))
//	})
//
// Connection Lifecycle:
//
// 1. Client connects with a verified identity
// 2. Connection registered with the hub
// 3. Coordinator OnConnect announces the arrival
// 4. Client sends events, receives room updates and replies
// 5. Close, read error, eviction or hub shutdown triggers OnDisconnect once
package websocket
