package service

// Inbound event names sent by clients.
const (
	EventGetUserList       = "get user list"
	EventGetRoomList       = "get room list"
	EventGetUserListInRoom = "get user list in room"
	EventGetRoomInfo       = "get room info"
	EventUserStart         = "user start"
	EventUserClick         = "user click"
)

// Outbound event names. Public and private chat use the same name in both
// directions.
const (
	EventUserList         = "user list"
	EventRoomList         = "room list"
	EventUserListInRoom   = "user list in room"
	EventRoomInfo         = "room info"
	EventUserStartFailure = "user start failure"
	EventUserClickFailure = "user click failure"
	EventRoomUpdate       = "room update"
	EventSystemMessage    = "system message"
	EventPublicMessage    = "public message"
	EventPrivateMessage   = "private message"
)
