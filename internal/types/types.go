package types

import "github.com/DoyleJ11/partybox-charades/internal/engine"

const (
	MsgRoomSnapshot = "RoomSnapshot"
	MsgRoomClosed   = "RoomClosed"
	MsgError        = "Error"
)

// ServerMessage is one frame on a room's subscribe socket.
type ServerMessage struct {
	Type    string       `json:"type"` // "RoomSnapshot" | "RoomClosed" | "Error"
	Version int          `json:"version,omitempty"`
	Room    *engine.Room `json:"room,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// RoomEnvelope is the body of GET /rooms/{code}.
type RoomEnvelope struct {
	Version int          `json:"version"`
	Room    *engine.Room `json:"room"`
}
