// Package session runs one device's side of a room: it mirrors the shared record locally,
// turns local taps into engine commands written back as patches, and on the host device
// owns the round timer and the post-result advance.
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/notify"
	"github.com/DoyleJ11/partybox-charades/internal/role"
	"github.com/DoyleJ11/partybox-charades/internal/store"
	"github.com/DoyleJ11/partybox-charades/internal/timer"
)

var (
	ErrNotJoined  = errors.New("room not loaded yet")
	ErrNotAllowed = errors.New("action not allowed for this device")
	ErrClosed     = errors.New("room closed")
)

const DefaultAdvanceDelay = 2 * time.Second

type Options struct {
	Store store.Store
	Join  role.Join

	AdvanceDelay time.Duration // pause on the result screen before the host advances
	PollInterval time.Duration // host timer poll interval
	Clock        func() time.Time
	Log          *zap.Logger
	Toasts       *notify.Queue

	// OnChange re-renders after every remote update. OnPhase fires on phase changes only
	// (haptics). OnClosed fires once when the room disappears. All run on the controller's
	// goroutine and must not block.
	OnChange func(role.View)
	OnPhase  func(prev, next engine.Phase)
	OnClosed func()
}

type msg interface{ isSessionMsg() }

type remoteUpdate struct{ snap store.Snapshot }

type readState struct{ reply chan local }

func (remoteUpdate) isSessionMsg() {}
func (readState) isSessionMsg()    {}

type local struct {
	room    *engine.Room
	version int
	lens    role.Lens
	closed  bool
}

type Controller struct {
	opts  Options
	log   *zap.Logger
	inbox chan msg
	timer *timer.Authority

	// owned by loop
	state local

	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// Start subscribes to the room and returns immediately; the first snapshot arrives
// asynchronously. Close (or cancelling ctx) unsubscribes.
func Start(ctx context.Context, opts Options) *Controller {
	if opts.AdvanceDelay <= 0 {
		opts.AdvanceDelay = DefaultAdvanceDelay
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Toasts == nil {
		opts.Toasts = notify.NewQueue(0, 0, opts.Clock)
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		opts:   opts,
		log:    opts.Log.With(zap.String("room", opts.Join.RoomID), zap.String("player", opts.Join.PlayerID)),
		inbox:  make(chan msg, 64),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.timer = timer.New(c.onTimeUp,
		timer.WithInterval(opts.PollInterval),
		timer.WithClock(opts.Clock),
		timer.WithLogger(c.log),
	)

	go c.loop()
	c.unsubscribe = opts.Store.Subscribe(ctx, opts.Join.RoomID, func(s store.Snapshot) {
		select {
		case c.inbox <- remoteUpdate{snap: s}:
		case <-ctx.Done():
		}
	})
	return c
}

func (c *Controller) loop() {
	defer close(c.done)
	timerStarted := false

	for {
		select {
		case <-c.ctx.Done():
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case remoteUpdate:
				if msg.snap.Closed() {
					c.closeRoom()
					return
				}
				c.receive(msg.snap)
				if c.state.lens.RunsTimer() && !timerStarted {
					timerStarted = true
					go c.timer.Run(c.ctx)
				}

			case readState:
				msg.reply <- c.state
			}
		}
	}
}

// receive replaces the local room wholesale; the store is the only source of truth.
func (c *Controller) receive(snap store.Snapshot) {
	next := *snap.Room
	var prev *engine.Room
	if c.state.room != nil {
		prev = c.state.room
	} else {
		c.state.lens = role.Classify(next, c.opts.Join)
		c.log.Info("joined room", zap.String("role", string(c.state.lens.Role)))
	}
	c.state.room = &next
	c.state.version = snap.Version

	if err := engine.CheckInvariants(next); err != nil {
		c.log.Warn("room record breaks invariants", zap.Int("version", snap.Version), zap.Error(err))
	}

	if c.state.lens.RunsTimer() {
		c.timer.Observe(next)
	}

	if prev == nil || prev.Phase != next.Phase {
		var from engine.Phase
		if prev != nil {
			from = prev.Phase
		}
		c.phaseChanged(from, next)
	}

	if c.opts.OnChange != nil {
		c.opts.OnChange(role.Project(next, c.state.lens, c.opts.Clock()))
	}
}

func (c *Controller) phaseChanged(from engine.Phase, r engine.Room) {
	c.log.Debug("phase changed", zap.String("from", string(from)), zap.String("to", string(r.Phase)))
	if c.opts.OnPhase != nil {
		c.opts.OnPhase(from, r.Phase)
	}
	if from == "" {
		return
	}

	lens := c.state.lens
	switch r.Phase {
	case engine.PhaseActing:
		if lens.IsActor(r) {
			c.opts.Toasts.Push("Your turn to act!", notify.KindInfo)
		}
	case engine.PhaseWaitingForHost:
		c.opts.Toasts.Push("Time's up!", notify.KindInfo)
	case engine.PhaseResult:
		if r.LastResult != nil && *r.LastResult == engine.ResultGuessed {
			c.opts.Toasts.Push(r.CurrentTeam().Name+" scored!", notify.KindSuccess)
		} else {
			c.opts.Toasts.Push("Missed", notify.KindInfo)
		}
		if lens.Role == role.Host && r.ActiveCardID != nil {
			c.scheduleAdvance(*r.ActiveCardID)
		}
	case engine.PhaseSummary:
		c.opts.Toasts.Push("Game over", notify.KindSuccess)
	}
}

func (c *Controller) scheduleAdvance(cardID string) {
	time.AfterFunc(c.opts.AdvanceDelay, func() {
		if c.ctx.Err() != nil {
			return
		}
		// Only advance out of the result this timer was scheduled for.
		c.apply(c.ctx, engine.AdvanceAfterResult(), func(r engine.Room) bool {
			return r.ActiveCardID != nil && *r.ActiveCardID == cardID
		})
	})
}

func (c *Controller) onTimeUp() error {
	now := c.opts.Clock()
	err := c.apply(c.ctx, engine.TimeExpired(), func(r engine.Room) bool {
		return r.RoundEndsAt != nil && now.UnixMilli() > *r.RoundEndsAt
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (c *Controller) closeRoom() {
	c.state.closed = true
	c.log.Info("room closed")
	c.opts.Toasts.Push("Game room closed or invalid", notify.KindError)
	if c.opts.OnClosed != nil {
		c.opts.OnClosed()
	}
	c.cancel()
}

func (c *Controller) snapshot() (local, error) {
	reply := make(chan local, 1)
	select {
	case c.inbox <- readState{reply: reply}:
	case <-c.done:
		return local{closed: true}, ErrClosed
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return local{closed: true}, ErrClosed
	}
}

// apply runs cmd against the freshest stored room and writes back the changed fields.
// Illegal commands and failed guards are dropped without error.
func (c *Controller) apply(ctx context.Context, cmd engine.Command, guard func(engine.Room) bool) error {
	errGuard := errors.New("guard")
	var events []engine.Event

	_, err := store.Update(ctx, c.opts.Store, c.opts.Join.RoomID, func(r engine.Room) (engine.Room, error) {
		if guard != nil && !guard(r) {
			return r, errGuard
		}
		evs, next, err := engine.Apply(r, cmd)
		events = evs
		return next, err
	})

	switch {
	case err == nil:
		c.log.Debug("command applied", zap.String("cmd", string(cmd.Type)), zap.Int("events", len(events)))
		return nil
	case errors.Is(err, engine.ErrIllegalCommand), errors.Is(err, errGuard):
		c.log.Debug("command dropped", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return nil
	case errors.Is(err, store.ErrRoomNotFound):
		return ErrClosed
	default:
		c.log.Warn("command failed", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return err
	}
}

func (c *Controller) act(ctx context.Context, allowed func(role.Lens, engine.Room) bool, cmd engine.Command) error {
	s, err := c.snapshot()
	if err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	if s.room == nil {
		return ErrNotJoined
	}
	if !allowed(s.lens, *s.room) {
		return ErrNotAllowed
	}
	return c.apply(ctx, cmd, nil)
}

// Pick claims the current turn for this device with the given card.
func (c *Controller) Pick(ctx context.Context, cardID string) error {
	return c.act(ctx, role.Lens.CanPick, engine.PickCard(cardID, c.opts.Join.PlayerID, c.opts.Clock()))
}

// Rule records the host's verdict on the active card.
func (c *Controller) Rule(ctx context.Context, result engine.Result) error {
	return c.act(ctx, role.Lens.CanRule, engine.Rule(result))
}

// Cancel undoes a mis-claimed turn.
func (c *Controller) Cancel(ctx context.Context) error {
	return c.act(ctx, role.Lens.CanCancel, engine.CancelRound())
}

// State returns the unredacted local room and its record version.
func (c *Controller) State() (engine.Room, int, bool) {
	s, err := c.snapshot()
	if err != nil || s.room == nil {
		return engine.Room{}, 0, false
	}
	return s.room.Clone(), s.version, true
}

// View is the room as this device may see it; ok is false before the first snapshot.
func (c *Controller) View() (role.View, bool) {
	s, err := c.snapshot()
	if err != nil || s.room == nil {
		return role.View{}, false
	}
	return role.Project(*s.room, s.lens, c.opts.Clock()), true
}

func (c *Controller) Lens() role.Lens {
	s, _ := c.snapshot()
	return s.lens
}

func (c *Controller) Notifications() []notify.Notification {
	return c.opts.Toasts.Active()
}

// Done is closed when the controller stops, either by Close or because the room closed.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) Close() {
	c.cancel()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	<-c.done
}
