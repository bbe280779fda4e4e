package engine

import (
	"errors"
	"fmt"
	"time"
)

var ErrIllegalCommand = errors.New("illegal command")

var (
	ErrWrongPhase         = fmt.Errorf("%w: wrong phase", ErrIllegalCommand)
	ErrCardNotHidden      = fmt.Errorf("%w: card not hidden", ErrIllegalCommand)
	ErrUnknownCard        = fmt.Errorf("%w: unknown card", ErrIllegalCommand)
	ErrInvalidResult      = fmt.Errorf("%w: invalid result", ErrIllegalCommand)
	ErrUnsupportedCommand = fmt.Errorf("%w: unsupported command", ErrIllegalCommand)
)

type CommandType string

const (
	CmdPickCard           CommandType = "PickCard"
	CmdTimeExpired        CommandType = "TimeExpired"
	CmdRule               CommandType = "Rule"
	CmdCancelRound        CommandType = "CancelRound"
	CmdAdvanceAfterResult CommandType = "AdvanceAfterResult"
)

/*
	CmdPickCard           -> EvtCardPicked -> EvtTimerStarted
	CmdTimeExpired        -> EvtTimeExpired
	CmdRule               -> [EvtScoreChanged] -> EvtCardResolved
	CmdCancelRound        -> EvtRoundCancelled
	CmdAdvanceAfterResult -> EvtTurnAdvanced | EvtGameCompleted
*/

type Command struct {
	Type    CommandType
	CardID  string
	ActorID string
	Result  Result
	Now     time.Time // only PickCard reads it
}

func PickCard(cardID, actorID string, now time.Time) Command {
	return Command{Type: CmdPickCard, CardID: cardID, ActorID: actorID, Now: now}
}

func TimeExpired() Command        { return Command{Type: CmdTimeExpired} }
func Rule(result Result) Command  { return Command{Type: CmdRule, Result: result} }
func CancelRound() Command        { return Command{Type: CmdCancelRound} }
func AdvanceAfterResult() Command { return Command{Type: CmdAdvanceAfterResult} }

type EventType string

const (
	EvtCardPicked     EventType = "CardPicked"
	EvtTimerStarted   EventType = "TimerStarted"
	EvtTimeExpired    EventType = "TimeExpired"
	EvtScoreChanged   EventType = "ScoreChanged"
	EvtCardResolved   EventType = "CardResolved"
	EvtRoundCancelled EventType = "RoundCancelled"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtGameCompleted  EventType = "GameCompleted"
)

type Event struct {
	Type    EventType
	CardID  string
	ActorID string
	TeamID  string
	Result  Result
}

// Apply computes the next room. On an illegal command it returns the input room unchanged
// and an error wrapping ErrIllegalCommand; racing devices make that routine, not exceptional.
func Apply(s Room, cmd Command) ([]Event, Room, error) {
	switch cmd.Type {
	case CmdPickCard:
		if s.Phase != PhaseBoard {
			return nil, s, ErrWrongPhase
		}
		i := s.cardIndex(cmd.CardID)
		if i < 0 {
			return nil, s, ErrUnknownCard
		}
		if s.Cards[i].Status != CardHidden {
			return nil, s, ErrCardNotHidden
		}

		next := s.Clone()
		cardID, actorID := cmd.CardID, cmd.ActorID
		endsAt := cmd.Now.Add(time.Duration(s.RoundDuration) * time.Second).UnixMilli()
		next.Cards[i].Status = CardActive
		next.ActiveCardID = &cardID
		next.ActorID = &actorID
		next.RoundEndsAt = &endsAt
		next.Phase = PhaseActing

		return []Event{
			{Type: EvtCardPicked, CardID: cardID, ActorID: actorID, TeamID: s.CurrentTeam().ID},
			{Type: EvtTimerStarted, CardID: cardID},
		}, next, nil

	case CmdTimeExpired:
		if s.Phase != PhaseActing {
			return nil, s, ErrWrongPhase
		}
		next := s.Clone()
		next.Phase = PhaseWaitingForHost
		next.RoundEndsAt = nil
		return []Event{{Type: EvtTimeExpired, CardID: deref(s.ActiveCardID)}}, next, nil

	case CmdRule:
		if s.Phase != PhaseActing && s.Phase != PhaseWaitingForHost {
			return nil, s, ErrWrongPhase
		}
		if cmd.Result != ResultGuessed && cmd.Result != ResultSkipped {
			return nil, s, ErrInvalidResult
		}
		i := s.cardIndex(deref(s.ActiveCardID))
		if i < 0 {
			return nil, s, ErrUnknownCard
		}

		next := s.Clone()
		events := []Event{}
		team := next.CurrentTeam()
		if cmd.Result == ResultGuessed {
			next.Teams[next.CurrentTeamIndex].Score++
			events = append(events, Event{Type: EvtScoreChanged, TeamID: team.ID})
		}
		result := cmd.Result
		next.Cards[i].Status = CardStatus(result)
		next.Phase = PhaseResult
		next.LastResult = &result
		next.RoundEndsAt = nil

		events = append(events, Event{Type: EvtCardResolved, CardID: next.Cards[i].ID, TeamID: team.ID, Result: result})
		return events, next, nil

	case CmdCancelRound:
		if s.Phase != PhaseActing && s.Phase != PhaseWaitingForHost {
			return nil, s, ErrWrongPhase
		}
		next := s.Clone()
		cardID := deref(s.ActiveCardID)
		if i := next.cardIndex(cardID); i >= 0 {
			next.Cards[i].Status = CardHidden
		}
		next.ActiveCardID = nil
		next.ActorID = nil
		next.RoundEndsAt = nil
		next.Phase = PhaseBoard
		return []Event{{Type: EvtRoundCancelled, CardID: cardID}}, next, nil

	case CmdAdvanceAfterResult:
		if s.Phase != PhaseResult {
			return nil, s, ErrWrongPhase
		}
		next := s.Clone()
		next.ActiveCardID = nil
		next.ActorID = nil
		next.RoundEndsAt = nil
		if next.Complete() {
			next.Phase = PhaseSummary
			return []Event{{Type: EvtGameCompleted}}, next, nil
		}
		next.CurrentTeamIndex = (next.CurrentTeamIndex + 1) % len(next.Teams)
		next.Phase = PhaseBoard
		return []Event{{Type: EvtTurnAdvanced, TeamID: next.CurrentTeam().ID}}, next, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
