package service

import (
	"encoding/json"

	"github.com/wricardo/gobang-online/game/room"
)

// Conn is one live client connection as the coordinator sees it. Room is
// fixed at connect time; empty means the lobby.
type Conn struct {
	ID       string
	Identity string
	Room     string
}

// UserInfo is a signed-in identity joined with its directory record.
type UserInfo struct {
	Username string   `json:"username"`
	Score    int      `json:"score"`
	Rooms    []string `json:"rooms,omitempty"`
}

// MemberInfo is a room member with its directory record and seat.
type MemberInfo struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	Role     string `json:"role"`
}

// RoomInfo is the payload of a room info query.
type RoomInfo struct {
	Room    room.Snapshot `json:"room"`
	Members []MemberInfo  `json:"members"`
}

// Failure carries the reason a start or click was rejected.
type Failure struct {
	Reason string `json:"reason"`
}

// ErrorPayload is unicast in place of a query result that could not be built.
type ErrorPayload struct {
	Error string `json:"error"`
}

// SystemMessage is a join or leave notice.
type SystemMessage struct {
	Message string `json:"message"`
}

// ChatMessage is relayed for public and private messages.
type ChatMessage struct {
	From string          `json:"from"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data"`
}

// RoomRemoved replaces the global room update when the last member left.
type RoomRemoved struct {
	Name    string `json:"name"`
	Removed bool   `json:"removed"`
}
