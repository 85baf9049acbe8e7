package server

import (
	"encoding/json"
	"net/http"
)

// Inbound event names. Dispatch is an explicit table keyed by these, see
// SessionServer.handlers.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventChatMessage    = "chat_message"
	EventGetOnlineUsers = "get_online_users"
)

// Outbound event names.
const (
	EventJoined      = "joined"
	EventLeft        = "left"
	EventOnlineUsers = "online_users"
	EventError       = "error"
)

// ClientFrame is a single inbound websocket frame.
type ClientFrame struct {
	Event   string `json:"event"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// ServerFrame is an acknowledgement or query response sent to one
// connection. Broadcast payloads use chat.BroadcastEvent instead.
type ServerFrame struct {
	Event  string   `json:"event"`
	RoomID string   `json:"room_id,omitempty"`
	Users  []string `json:"users,omitempty"`
	Code   int      `json:"code,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func (f *ServerFrame) encode() []byte {
	b, _ := json.Marshal(f)
	return b
}

func joinedFrame(roomID string) *ServerFrame {
	return &ServerFrame{Event: EventJoined, RoomID: roomID}
}

func leftFrame(roomID string) *ServerFrame {
	return &ServerFrame{Event: EventLeft, RoomID: roomID}
}

func onlineUsersFrame(users []string) *ServerFrame {
	return &ServerFrame{Event: EventOnlineUsers, Users: users}
}

func errorFrame(code int, msg string) *ServerFrame {
	return &ServerFrame{Event: EventError, Code: code, Error: msg}
}

func errAuthRequired() *ServerFrame {
	return errorFrame(http.StatusUnauthorized, "authentication required")
}

func errForbidden() *ServerFrame {
	return errorFrame(http.StatusForbidden, "forbidden")
}

func errRoomNotFound() *ServerFrame {
	return errorFrame(http.StatusNotFound, "room not found")
}

func errInvalidFrame() *ServerFrame {
	return errorFrame(http.StatusBadRequest, "invalid message format")
}

func errInternal() *ServerFrame {
	return errorFrame(http.StatusInternalServerError, "internal server error")
}
