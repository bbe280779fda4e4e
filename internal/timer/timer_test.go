package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

func actingRoom(t *testing.T, endsAt time.Time) engine.Room {
	t.Helper()
	r, err := engine.NewRoom(engine.Setup{RoundDuration: 60, TeamNames: []string{"A"}, Words: []string{"w", "v"}})
	require.NoError(t, err)
	_, r, err = engine.Apply(r, engine.PickCard("c0", "actor", time.Now()))
	require.NoError(t, err)
	ms := endsAt.UnixMilli()
	r.RoundEndsAt = &ms
	return r
}

func TestPoll_ExpiredDeadlineFiresExactlyOnce(t *testing.T) {
	now := time.Now()
	a := New(func() error { return nil }, WithClock(func() time.Time { return now }))
	r := actingRoom(t, now.Add(-time.Millisecond))

	a.Observe(r)
	fired := 0
	for range 10 {
		if a.Poll() {
			fired++
		}
		a.Observe(r) // the phase change has not come back yet
	}
	assert.Equal(t, 1, fired)
}

func TestPoll_BeforeDeadline(t *testing.T) {
	now := time.Now()
	a := New(func() error { return nil }, WithClock(func() time.Time { return now }))
	a.Observe(actingRoom(t, now.Add(time.Second)))
	assert.False(t, a.Poll())

	now = now.Add(2 * time.Second)
	assert.True(t, a.Poll())
}

func TestPoll_DisarmedOutsideActing(t *testing.T) {
	now := time.Now()
	a := New(func() error { return nil }, WithClock(func() time.Time { return now }))
	r := actingRoom(t, now.Add(-time.Second))
	_, waiting, err := engine.Apply(r, engine.TimeExpired())
	require.NoError(t, err)

	a.Observe(waiting)
	assert.False(t, a.Poll())
}

func TestPoll_NewRoundRearms(t *testing.T) {
	now := time.Now()
	a := New(func() error { return nil }, WithClock(func() time.Time { return now }))
	first := actingRoom(t, now.Add(-time.Second))
	a.Observe(first)
	require.True(t, a.Poll())

	second := first.Clone()
	card := "c1"
	second.ActiveCardID = &card
	a.Observe(second)
	assert.True(t, a.Poll())
}

func TestRun_EmitsOnce(t *testing.T) {
	var emitted atomic.Int32
	a := New(func() error { emitted.Add(1); return nil }, WithInterval(5*time.Millisecond))
	a.Observe(actingRoom(t, time.Now().Add(20*time.Millisecond)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	assert.Eventually(t, func() bool { return emitted.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), emitted.Load())
}

func TestRun_RetriesFailedEmit(t *testing.T) {
	var calls atomic.Int32
	a := New(func() error {
		if calls.Add(1) < 3 {
			return errors.New("relay unreachable")
		}
		return nil
	}, WithInterval(5*time.Millisecond))
	a.Observe(actingRoom(t, time.Now().Add(-time.Millisecond)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	assert.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load(), "no emits after one succeeded")
}

func TestRearm_IgnoresSupersededRound(t *testing.T) {
	now := time.Now()
	a := New(func() error { return nil }, WithClock(func() time.Time { return now }))
	first := actingRoom(t, now.Add(-time.Second))
	a.Observe(first)
	round, due := a.due()
	require.True(t, due)

	second := first.Clone()
	card := "c1"
	second.ActiveCardID = &card
	a.Observe(second)
	require.True(t, a.Poll())

	a.rearm(round)
	assert.False(t, a.Poll(), "a stale retry must not re-fire the current round")
}
