// Package api provides the HTTP surface of Gobang Online.
//
// Endpoints:
//
// Pages (served from the static dir, 404.html for unknown paths):
//   - GET / - start page
//   - GET /lobby - lobby page, requires a session
//   - GET /room/{id} - room page, requires a session
//
// Sessions:
//   - POST /login - username and password as form or JSON; sets the session cookie
//   - POST /logout - drops the session
//
// Realtime:
//   - GET /ws - websocket upgrade; the room comes from ?room= or the Referer
//
// Queries (same data as the websocket queries):
//   - GET /api/users
//   - GET /api/rooms
//   - GET /api/rooms/{name}
//   - GET /api/rooms/{name}/users
//
// Operations:
//   - GET /healthz, GET /version, GET /metrics
//   - POST /mcp - MCP JSON-RPC endpoint when an MCP server is mounted
//
// Errors are returned as JSON with an HTTP status code:
//
//	{"error": "no such a room"}
package api
