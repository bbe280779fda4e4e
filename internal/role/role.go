// Package role classifies a device as host, player or spectator for one room. The role is
// local to the device and never written to the room.
package role

import (
	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

type Role string

const (
	Host      Role = "host"
	Player    Role = "player"
	Spectator Role = "spectator"
)

func Parse(s string) Role {
	switch Role(s) {
	case Host:
		return Host
	case Spectator:
		return Spectator
	default:
		return Player
	}
}

// Join is what a device presents when it opens a room.
type Join struct {
	RoomID   string
	Role     Role
	PlayerID string
	HostKey  string // only the creating device holds it
}

// Lens is a device's view of a room: its verified role plus its player id.
type Lens struct {
	Role     Role
	PlayerID string
}

// Classify checks a requested host role against the room's host key hash. A device that
// asks for host without the matching key is treated as a player.
func Classify(room engine.Room, j Join) Lens {
	r := j.Role
	if r == Host && !VerifyHostKey(room.HostKeyHash, j.HostKey) {
		r = Player
	}
	return Lens{Role: r, PlayerID: j.PlayerID}
}

func (l Lens) IsActor(room engine.Room) bool {
	if l.Role != Player || room.ActorID == nil {
		return false
	}
	inRound := room.Phase == engine.PhaseActing || room.Phase == engine.PhaseWaitingForHost
	return inRound && *room.ActorID == l.PlayerID
}

func (l Lens) CanPick(room engine.Room) bool {
	return l.Role == Player && room.Phase == engine.PhaseBoard
}

func (l Lens) CanRule(room engine.Room) bool {
	return l.Role == Host && (room.Phase == engine.PhaseActing || room.Phase == engine.PhaseWaitingForHost)
}

func (l Lens) CanCancel(room engine.Room) bool { return l.CanRule(room) }

func (l Lens) RunsTimer() bool { return l.Role == Host }
