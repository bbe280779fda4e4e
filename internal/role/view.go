package role

import (
	"time"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

type View struct {
	Room       engine.Room // words the lens may not see are blanked
	Role       Role
	IsActor    bool
	SecretWord string // set for the host and the current actor while a round runs
	Remaining  time.Duration
}

// Project renders the room through a lens. Resolved words are public; hidden and active
// words are visible only to the host and the current actor.
func Project(room engine.Room, l Lens, now time.Time) View {
	r := room.Clone()
	r.HostKeyHash = ""

	seesActive := l.Role == Host || l.IsActor(room)
	v := View{Role: l.Role, IsActor: l.IsActor(room), Remaining: room.Remaining(now)}

	for i, c := range r.Cards {
		switch {
		case c.Status.Resolved():
		case c.Status == engine.CardActive && seesActive:
			v.SecretWord = c.Word
		default:
			r.Cards[i].Word = ""
		}
	}
	v.Room = r
	return v
}
