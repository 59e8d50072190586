package service

import (
	"context"
	"encoding/json"

	"github.com/wricardo/gobang-online/directory"
	"github.com/wricardo/gobang-online/game/room"
)

// Coordinator is invoked once per inbound transport event. It owns the
// presence and room registries and decides what is sent to whom.
type Coordinator interface {
	// Connection lifecycle
	OnConnect(ctx context.Context, conn Conn)
	OnDisconnect(ctx context.Context, conn Conn)

	// Game operations
	OnReady(ctx context.Context, conn Conn, roomName string)
	OnMove(ctx context.Context, conn Conn, roomName string, x, y int)

	// Queries answered to the requesting connection only
	OnQueryUserList(ctx context.Context, conn Conn)
	OnQueryRoomList(ctx context.Context, conn Conn)
	OnQueryRoomInfo(ctx context.Context, conn Conn, roomName string)
	OnQueryUserListInRoom(ctx context.Context, conn Conn, roomName string)

	// Chat
	OnPublicMessage(ctx context.Context, conn Conn, data json.RawMessage)
	OnPrivateMessage(ctx context.Context, conn Conn, roomName string, data json.RawMessage)

	// Read-only projections shared with the REST and MCP surfaces
	UserList(ctx context.Context) ([]UserInfo, error)
	RoomList(ctx context.Context) []room.Snapshot
	RoomInfo(ctx context.Context, roomName string) (*RoomInfo, error)
	UserListInRoom(ctx context.Context, roomName string) ([]MemberInfo, error)
	IsSignedIn(identity string) bool
}

// Broadcaster is the realtime transport. Excluded connection ids are
// skipped.
type Broadcaster interface {
	Unicast(connID, event string, payload any)
	BroadcastAll(event string, payload any, except ...string)
	BroadcastRoom(roomName, event string, payload any, except ...string)
}

// Directory resolves persisted user records. It is only used by queries.
type Directory interface {
	FindByIdentity(ctx context.Context, identity string) (directory.Record, error)
}
