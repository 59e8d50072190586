package websocket

import (
	"context"
	"encoding/json"

	"github.com/wricardo/gobang-online/game/service"
)

// Inbound is a frame sent by a client. Room defaults to the room the
// connection was opened from.
type Inbound struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	X     int             `json:"x,omitempty"`
	Y     int             `json:"y,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// dispatch decodes one inbound frame and hands it to the coordinator.
// Malformed frames and unknown events are logged and ignored.
func (h *Hub) dispatch(ctx context.Context, c *Client, data []byte) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		h.log.Debug().Err(err).Str("conn", c.id).Msg("malformed frame")
		return
	}

	conn := c.info()
	roomName := in.Room
	if roomName == "" {
		roomName = c.room
	}

	switch in.Event {
	case service.EventGetUserList:
		h.coordinator.OnQueryUserList(ctx, conn)
	case service.EventGetRoomList:
		h.coordinator.OnQueryRoomList(ctx, conn)
	case service.EventGetUserListInRoom:
		h.coordinator.OnQueryUserListInRoom(ctx, conn, roomName)
	case service.EventGetRoomInfo:
		h.coordinator.OnQueryRoomInfo(ctx, conn, roomName)
	case service.EventUserStart:
		h.coordinator.OnReady(ctx, conn, roomName)
	case service.EventUserClick:
		x, y := in.X, in.Y
		if x == 0 && y == 0 && len(in.Data) > 0 {
			// {"data": {"x": 3, "y": 4}} is accepted too
			var pos struct{ X, Y int }
			if err := json.Unmarshal(in.Data, &pos); err == nil {
				x, y = pos.X, pos.Y
			}
		}
		h.coordinator.OnMove(ctx, conn, roomName, x, y)
	case service.EventPublicMessage:
		h.coordinator.OnPublicMessage(ctx, conn, in.Data)
	case service.EventPrivateMessage:
		h.coordinator.OnPrivateMessage(ctx, conn, in.Room, in.Data)
	default:
		h.log.Debug().Str("conn", c.id).Str("event", in.Event).Msg("unknown event")
	}
}
