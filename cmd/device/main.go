// Command device is a terminal stand-in for one phone at the party: it hosts a new game or
// joins one from a share link, and talks to the relay like any other device.
//
//	device host -teams "Red,Blue" -topic animals
//	device join "http://localhost:8080/?gameId=K7QX2&role=player" -name sam
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/config"
	"github.com/DoyleJ11/partybox-charades/internal/content"
	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/remote"
	"github.com/DoyleJ11/partybox-charades/internal/role"
	"github.com/DoyleJ11/partybox-charades/internal/session"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  device host [-teams "A,B"] [-topic T] [-cards N] [-duration SECONDS]
  device join <share link> [-name NAME]`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay, err := remote.New(cfg.RelayURL, remote.WithLogger(log))
	if err != nil {
		log.Fatal("relay", zap.Error(err))
	}

	lines := readLines(ctx)

	switch os.Args[1] {
	case "host":
		err = host(ctx, cfg, relay, log, lines, os.Args[2:])
	case "join":
		err = join(ctx, cfg, relay, log, lines, os.Args[2:])
	default:
		usage()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func host(ctx context.Context, cfg config.Config, relay *remote.Client, log *zap.Logger, lines <-chan string, args []string) error {
	fs := flag.NewFlagSet("host", flag.ExitOnError)
	teams := fs.String("teams", "Team 1,Team 2", "comma separated team names")
	topic := fs.String("topic", "", "word category")
	cards := fs.Int("cards", session.DefaultCardCount, "number of cards")
	duration := fs.Int("duration", session.DefaultRoundDuration, "round length in seconds")
	_ = fs.Parse(args)

	var gen content.Generator
	if cfg.ContentAPIURL != "" {
		gen = &content.HTTPGenerator{Endpoint: cfg.ContentAPIURL, APIKey: cfg.ContentAPIKey}
	}
	words := content.NewProvider(gen, cfg.ContentTimeout, log)

	setup := session.GameSetup{
		Topic:         *topic,
		TeamNames:     splitTeams(*teams),
		RoundDuration: *duration,
		CardCount:     *cards,
	}

	for {
		created, err := session.CreateGame(ctx, relay, words, setup, log)
		if err != nil {
			return err
		}
		printShareLinks(cfg.RelayURL, created.Room.ID)

		again, err := play(ctx, cfg, relay, log, created.Join(), lines)
		if err != nil || !again {
			return err
		}
		// play again: same teams, fresh room
	}
}

func join(ctx context.Context, cfg config.Config, relay *remote.Client, log *zap.Logger, lines <-chan string, args []string) error {
	if len(args) == 0 {
		usage()
	}
	link := args[0]
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	name := fs.String("name", "", "player id shown to the room")
	_ = fs.Parse(args[1:])

	j, err := role.ParseLink(link)
	if err != nil {
		return err
	}
	j.PlayerID = *name
	if j.PlayerID == "" {
		j.PlayerID = uuid.NewString()[:8]
	}
	_, err = play(ctx, cfg, relay, log, j, lines)
	return err
}

// play runs one room until the user quits, the room closes, or (host only) asks for a
// new game; again reports the last case.
func play(ctx context.Context, cfg config.Config, relay *remote.Client, log *zap.Logger, j role.Join, lines <-chan string) (again bool, err error) {
	ctrl := session.Start(ctx, session.Options{
		Store:        relay,
		Join:         j,
		AdvanceDelay: cfg.AdvanceDelay,
		PollInterval: cfg.TimerPollInterval,
		Log:          log,
		OnChange:     render,
		OnPhase: func(_, next engine.Phase) {
			if next == engine.PhaseResult || next == engine.PhaseActing {
				fmt.Print("\a") // the terminal's haptic
			}
		},
	})
	defer ctrl.Close()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ctrl.Done():
			printToasts(ctrl)
			return false, nil
		case line, ok := <-lines:
			if !ok || line == "q" {
				return false, nil
			}
			if line == "new" && ctrl.Lens().Role == role.Host {
				return true, nil
			}
			if err := command(ctx, ctrl, line); err != nil {
				fmt.Println("!", err)
			}
			printToasts(ctrl)
		}
	}
}

// readLines feeds stdin to whichever room is being played; it lives for the process.
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func command(ctx context.Context, ctrl *session.Controller, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		if v, ok := ctrl.View(); ok {
			render(v)
		}
		return nil
	}
	switch fields[0] {
	case "pick", "p":
		if len(fields) < 2 {
			return errors.New("pick needs a card id")
		}
		return ctrl.Pick(ctx, fields[1])
	case "got", "g":
		return ctrl.Rule(ctx, engine.ResultGuessed)
	case "skip", "s":
		return ctrl.Rule(ctx, engine.ResultSkipped)
	case "cancel", "c":
		return ctrl.Cancel(ctx)
	default:
		return fmt.Errorf("unknown command %q (pick <id>, got, skip, cancel, new, q)", fields[0])
	}
}

func splitTeams(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
