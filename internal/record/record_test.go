package record

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/store"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan store.Snapshot, within time.Duration) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return store.Snapshot{} // unreachable
	}
}

func newRecord(t *testing.T, ctx context.Context) *Record {
	t.Helper()
	room, err := engine.NewRoom(engine.Setup{
		RoomID:        "ZED1",
		RoundDuration: 30,
		TeamNames:     []string{"A", "B"},
		Words:         []string{"one", "two"},
	})
	require.NoError(t, err)
	doc, err := store.Encode(room)
	require.NoError(t, err)
	return New(ctx, "ZED1", doc, zaptest.NewLogger(t))
}

func write(t *testing.T, r *Record, p store.Patch, version int) error {
	t.Helper()
	reply := make(chan error, 1)
	require.True(t, r.Send(context.Background(), Write{Patch: p, Version: version, Reply: reply}))
	select {
	case err := <-reply:
		return err
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for write reply")
		return nil
	}
}

func TestRecord_SubscribeGetsCurrentThenWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecord(t, ctx)

	out := make(chan store.Snapshot, 2)
	r.Send(ctx, Subscribe{ID: "s1", Outbox: out})

	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, first.Version)
	require.NotNil(t, first.Room)
	assert.Equal(t, engine.PhaseBoard, first.Room.Phase)

	require.NoError(t, write(t, r, store.Patch{"currentTeamIndex": json.RawMessage("1")}, -1))

	next := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, 1, next.Room.CurrentTeamIndex)
	assert.Equal(t, "ZED1", next.Room.ID, "unpatched fields survive")
}

func TestRecord_ConditionalWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecord(t, ctx)

	require.NoError(t, write(t, r, store.Patch{"category": json.RawMessage(`"Animals"`)}, 0))
	err := write(t, r, store.Patch{"category": json.RawMessage(`"Jobs"`)}, 0)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	reply := make(chan store.Snapshot, 1)
	r.Send(ctx, Get{Reply: reply})
	snap := recvSnapshot(t, reply, 100*time.Millisecond)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "Animals", snap.Room.Category)
}

func TestRecord_RejectsPatchThatBreaksTheRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecord(t, ctx)

	err := write(t, r, store.Patch{"teams": json.RawMessage(`"not a list"`)}, -1)
	assert.ErrorIs(t, err, store.ErrInvalidPatch)
}

func TestRecord_SlowSubscriberKeepsNewest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecord(t, ctx)

	out := make(chan store.Snapshot, 1)
	r.Send(ctx, Subscribe{ID: "slow", Outbox: out})

	for i := 1; i <= 3; i++ {
		require.NoError(t, write(t, r, store.Patch{"currentTeamIndex": json.RawMessage("1")}, -1))
	}

	snap := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 3, snap.Version)

	_, watched := r.Idle(time.Now())
	assert.True(t, watched, "slow subscriber must not be dropped")
}

func TestRecord_ShutdownClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRecord(t, ctx)

	out := make(chan store.Snapshot, 1)
	r.Send(ctx, Subscribe{ID: "s1", Outbox: out})
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	r.Send(ctx, Shutdown{})

	select {
	case _, ok := <-out:
		assert.False(t, ok, "expected closed outbox")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("outbox not closed on shutdown")
	}
	<-r.Done()
	assert.False(t, r.Send(context.Background(), Get{Reply: make(chan store.Snapshot, 1)}))
}
