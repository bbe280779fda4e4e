package engine

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

type Phase string

const (
	PhaseBoard          Phase = "board"
	PhaseActing         Phase = "acting"
	PhaseWaitingForHost Phase = "waiting_for_host"
	PhaseResult         Phase = "result"
	PhaseSummary        Phase = "summary"
)

type CardStatus string

const (
	CardHidden  CardStatus = "hidden"
	CardActive  CardStatus = "active"
	CardGuessed CardStatus = "guessed"
	CardSkipped CardStatus = "skipped"
)

func (s CardStatus) Resolved() bool {
	return s == CardGuessed || s == CardSkipped
}

type Result string

const (
	ResultGuessed Result = "guessed"
	ResultSkipped Result = "skipped"
)

type Team struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Color string `json:"color"`
}

type Card struct {
	ID     string     `json:"id"`
	Word   string     `json:"word"`
	Status CardStatus `json:"status"`
}

// Room is the shared record every device observes. Nullable fields are pointers so the
// stored JSON carries explicit nulls.
type Room struct {
	ID               string  `json:"roomId"`
	Phase            Phase   `json:"phase"`
	Teams            []Team  `json:"teams"`
	CurrentTeamIndex int     `json:"currentTeamIndex"`
	Cards            []Card  `json:"cards"`
	ActiveCardID     *string `json:"activeCardId"`
	ActorID          *string `json:"actorId"`
	RoundEndsAt      *int64  `json:"roundEndsAt"` // epoch ms
	LastResult       *Result `json:"lastResult"`
	Category         string  `json:"category"`
	RoundDuration    int     `json:"roundDuration"` // seconds
	HostKeyHash      string  `json:"hostKeyHash,omitempty"`
}

var TeamColors = []string{"#EC4899", "#3B82F6", "#10B981", "#F59E0B"}

var (
	ErrNoTeams       = errors.New("room needs at least one team")
	ErrNoCards       = errors.New("room needs at least one card")
	ErrRoundDuration = errors.New("round duration must be positive")
)

type Setup struct {
	RoomID        string
	Category      string
	RoundDuration int
	TeamNames     []string
	Words         []string
	HostKeyHash   string
}

func NewRoom(s Setup) (Room, error) {
	if len(s.TeamNames) == 0 {
		return Room{}, ErrNoTeams
	}
	if len(s.Words) == 0 {
		return Room{}, ErrNoCards
	}
	if s.RoundDuration <= 0 {
		return Room{}, ErrRoundDuration
	}

	teams := make([]Team, len(s.TeamNames))
	for i, name := range s.TeamNames {
		teams[i] = Team{
			ID:    strconv.Itoa(i + 1),
			Name:  name,
			Color: TeamColors[i%len(TeamColors)],
		}
	}

	cards := make([]Card, len(s.Words))
	for i, w := range s.Words {
		cards[i] = Card{ID: "c" + strconv.Itoa(i), Word: w, Status: CardHidden}
	}

	return Room{
		ID:            s.RoomID,
		Phase:         PhaseBoard,
		Teams:         teams,
		Cards:         cards,
		Category:      s.Category,
		RoundDuration: s.RoundDuration,
		HostKeyHash:   s.HostKeyHash,
	}, nil
}

// Clone returns a deep copy; transitions work on clones so callers' rooms never alias.
func (r Room) Clone() Room {
	c := r
	c.Teams = append([]Team(nil), r.Teams...)
	c.Cards = append([]Card(nil), r.Cards...)
	c.ActiveCardID = clonePtr(r.ActiveCardID)
	c.ActorID = clonePtr(r.ActorID)
	c.RoundEndsAt = clonePtr(r.RoundEndsAt)
	c.LastResult = clonePtr(r.LastResult)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r Room) cardIndex(id string) int {
	for i, c := range r.Cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (r Room) ActiveCard() (Card, bool) {
	if r.ActiveCardID == nil {
		return Card{}, false
	}
	i := r.cardIndex(*r.ActiveCardID)
	if i < 0 {
		return Card{}, false
	}
	return r.Cards[i], true
}

func (r Room) CurrentTeam() Team {
	if r.CurrentTeamIndex >= 0 && r.CurrentTeamIndex < len(r.Teams) {
		return r.Teams[r.CurrentTeamIndex]
	}
	if len(r.Teams) > 0 {
		return r.Teams[0]
	}
	return Team{}
}

// Complete reports whether every card is guessed or skipped.
func (r Room) Complete() bool {
	for _, c := range r.Cards {
		if !c.Status.Resolved() {
			return false
		}
	}
	return true
}

// Remaining is the advisory countdown any device may show.
func (r Room) Remaining(now time.Time) time.Duration {
	if r.RoundEndsAt == nil {
		return 0
	}
	left := time.Duration(*r.RoundEndsAt-now.UnixMilli()) * time.Millisecond
	if left < 0 {
		return 0
	}
	return left
}

var ErrInvariant = errors.New("room invariant violated")

func CheckInvariants(r Room) error {
	if len(r.Teams) == 0 {
		return fmt.Errorf("%w: no teams", ErrInvariant)
	}
	if r.CurrentTeamIndex < 0 || r.CurrentTeamIndex >= len(r.Teams) {
		return fmt.Errorf("%w: currentTeamIndex %d out of range", ErrInvariant, r.CurrentTeamIndex)
	}
	for _, t := range r.Teams {
		if t.Score < 0 {
			return fmt.Errorf("%w: team %s has negative score", ErrInvariant, t.ID)
		}
	}

	active := 0
	var activeID string
	for _, c := range r.Cards {
		if c.Status == CardActive {
			active++
			activeID = c.ID
		}
	}

	inRound := r.Phase == PhaseActing || r.Phase == PhaseWaitingForHost
	switch {
	case inRound && active != 1:
		return fmt.Errorf("%w: phase %s with %d active cards", ErrInvariant, r.Phase, active)
	case !inRound && active != 0:
		return fmt.Errorf("%w: phase %s with %d active cards", ErrInvariant, r.Phase, active)
	}

	// result keeps pointing at the card it just resolved
	if r.Phase == PhaseResult {
		c, ok := r.ActiveCard()
		if !ok || !c.Status.Resolved() {
			return fmt.Errorf("%w: result phase without a resolved card", ErrInvariant)
		}
	} else if active == 0 && r.ActiveCardID != nil {
		return fmt.Errorf("%w: activeCardId set with no active card", ErrInvariant)
	}
	if active == 1 && (r.ActiveCardID == nil || *r.ActiveCardID != activeID) {
		return fmt.Errorf("%w: activeCardId does not name the active card", ErrInvariant)
	}

	// The last ruling leaves a complete room in result until the advance moves it to summary.
	if r.Phase != PhaseResult && (r.Phase == PhaseSummary) != r.Complete() {
		return fmt.Errorf("%w: phase %s but complete=%v", ErrInvariant, r.Phase, r.Complete())
	}
	return nil
}
