// Package timer is the host-only authority that decides when a round's time is up.
// Every device may show a countdown; only this loop turns the deadline into an event.
package timer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

const DefaultInterval = 250 * time.Millisecond

type Authority struct {
	interval time.Duration
	now      func() time.Time
	emit     func() error
	log      *zap.Logger

	mu       sync.Mutex
	round    string // card + deadline of the armed round, "" when disarmed
	deadline time.Time
	fired    bool
}

type Option func(*Authority)

func WithInterval(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(a *Authority) { a.log = log }
}

// New returns an authority that calls emit once per round when its deadline passes. A
// round whose emit fails is retried on the next tick.
func New(emit func() error, opts ...Option) *Authority {
	a := &Authority{
		interval: DefaultInterval,
		now:      time.Now,
		emit:     emit,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Observe arms the authority for the room's current round, or disarms it when no round
// is running. Re-observing the same round keeps the fired flag.
func (a *Authority) Observe(r engine.Room) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r.Phase != engine.PhaseActing || r.RoundEndsAt == nil || r.ActiveCardID == nil {
		a.round = ""
		a.fired = false
		return
	}

	round := *r.ActiveCardID + "@" + strconv.FormatInt(*r.RoundEndsAt, 10)
	if round == a.round {
		return
	}
	a.round = round
	a.deadline = time.UnixMilli(*r.RoundEndsAt)
	a.fired = false
	a.log.Debug("timer armed", zap.String("round", round))
}

// Poll reports true on the first observation past the deadline of the armed round and
// false on every later call until a new round is observed.
func (a *Authority) Poll() bool {
	_, due := a.due()
	return due
}

func (a *Authority) due() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.round == "" || a.fired {
		return "", false
	}
	if !a.now().After(a.deadline) {
		return "", false
	}
	a.fired = true
	a.log.Debug("timer expired", zap.String("round", a.round))
	return a.round, true
}

// rearm lets round fire again unless another round was observed meanwhile.
func (a *Authority) rearm(round string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.round == round {
		a.fired = false
	}
}

func (a *Authority) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			round, due := a.due()
			if !due {
				continue
			}
			if err := a.emit(); err != nil && ctx.Err() == nil {
				a.log.Warn("time up not recorded, retrying", zap.String("round", round), zap.Error(err))
				a.rearm(round)
			}
		}
	}
}
