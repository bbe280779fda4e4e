package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/role"
	"github.com/DoyleJ11/partybox-charades/internal/session"
)

func printShareLinks(base, roomID string) {
	fmt.Printf("\nRoom %s\n", roomID)
	for _, r := range []role.Role{role.Player, role.Spectator} {
		link, err := role.Link(base, roomID, r)
		if err != nil {
			fmt.Println("!", err)
			continue
		}
		fmt.Printf("  %-9s %s\n", r, link)
		if r != role.Player {
			continue
		}
		if q, err := qrcode.New(link, qrcode.Medium); err == nil {
			fmt.Println(q.ToSmallString(false))
		}
	}
	fmt.Println("commands: got | skip | cancel | new | q")
}

func render(v role.View) {
	r := v.Room
	var b strings.Builder

	fmt.Fprintf(&b, "\n[%s] %s  (%s)\n", r.ID, r.Category, v.Role)
	for i, t := range r.Teams {
		marker := " "
		if i == r.CurrentTeamIndex {
			marker = ">"
		}
		fmt.Fprintf(&b, " %s %-12s %d\n", marker, t.Name, t.Score)
	}

	switch r.Phase {
	case engine.PhaseBoard:
		b.WriteString("  cards:")
		for _, c := range r.Cards {
			switch c.Status {
			case engine.CardHidden:
				fmt.Fprintf(&b, " %s", c.ID)
			default:
				fmt.Fprintf(&b, " (%s)", c.Word)
			}
		}
		b.WriteString("\n")
		if v.Role == role.Player {
			b.WriteString("  pick <card> to act\n")
		}
	case engine.PhaseActing:
		actor := "someone"
		if r.ActorID != nil {
			actor = *r.ActorID
		}
		fmt.Fprintf(&b, "  %s is acting, %s left\n", actor, v.Remaining.Round(time.Second))
	case engine.PhaseWaitingForHost:
		b.WriteString("  time's up, waiting for the host\n")
	case engine.PhaseResult:
		if r.LastResult != nil {
			fmt.Fprintf(&b, "  %s\n", *r.LastResult)
		}
	case engine.PhaseSummary:
		b.WriteString("  game over\n")
		if v.Role == role.Host {
			b.WriteString("  new: play again with the same teams\n")
		}
	}
	if v.SecretWord != "" {
		fmt.Fprintf(&b, "  word: %s\n", v.SecretWord)
	}
	fmt.Print(b.String())
}

func printToasts(ctrl *session.Controller) {
	for _, n := range ctrl.Notifications() {
		fmt.Printf("  * %s\n", n.Message)
	}
}
