// Package mcp exposes the Gobang Online lobby to AI agents over the Model
// Context Protocol.
//
// The client is a thin proxy: every tool issues a request against the REST
// API and renders the JSON answer as text. It never talks to the websocket
// hub, so agents observe the lobby without taking part in it.
//
// Tools:
//   - list_users: signed-in users with scores and rooms
//   - list_rooms: live rooms with status and players
//   - room_info: one room in detail, with an ASCII board
//   - room_users: members of one room with their seats
//   - game_rules: how rooms, readiness and moves work
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8888")
//	server.ServeStdio(client.GetMCPServer())
package mcp
