// Package hub is the in-memory shared store: one actor owning every room record by code.
package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
	"github.com/DoyleJ11/partybox-charades/internal/record"
	"github.com/DoyleJ11/partybox-charades/internal/store"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code  string
	Doc   []byte
	Reply chan *record.Record // nil when the code is taken
}

type GetRoom struct {
	Code  string
	Reply chan *record.Record
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	// RoomTTL reaps rooms nobody has written to or watched for this long. Zero disables it.
	RoomTTL time.Duration
	Log     *zap.Logger
}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*record.Record
	ttl    time.Duration
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

var _ store.Store = (*Hub)(nil)

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*record.Record),
		ttl:    opts.RoomTTL,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	var sweep <-chan time.Time
	if h.ttl > 0 {
		t := time.NewTicker(h.ttl / 2)
		defer t.Stop()
		sweep = t.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case now := <-sweep:
			for code, rec := range h.rooms {
				idle, watched := rec.Idle(now)
				if !watched && idle > h.ttl {
					h.log.Info("reaping abandoned room", zap.String("room", code), zap.Duration("idle", idle))
					rec.Send(h.ctx, record.Shutdown{})
					delete(h.rooms, code)
				}
			}

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if h.rooms[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				rec := record.New(h.ctx, msg.Code, msg.Doc, h.log)
				h.rooms[msg.Code] = rec
				msg.Reply <- rec

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				if rec := h.rooms[msg.Code]; rec != nil {
					rec.Send(h.ctx, record.Shutdown{})
					delete(h.rooms, msg.Code)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, rec := range h.rooms {
		rec.Send(context.Background(), record.Shutdown{})
	}
	clear(h.rooms)
	h.cancel()
}

func (h *Hub) send(ctx context.Context, m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) lookup(ctx context.Context, code string) *record.Record {
	reply := make(chan *record.Record, 1)
	if !h.send(ctx, GetRoom{Code: code, Reply: reply}) {
		return nil
	}
	select {
	case rec := <-reply:
		return rec
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) CreateRoom(ctx context.Context, room engine.Room) bool {
	doc, err := store.Encode(room)
	if err != nil {
		h.log.Warn("encode room", zap.String("room", room.ID), zap.Error(err))
		return false
	}
	reply := make(chan *record.Record, 1)
	if !h.send(ctx, CreateRoom{Code: room.ID, Doc: doc, Reply: reply}) {
		return false
	}
	select {
	case rec := <-reply:
		return rec != nil
	case <-h.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) RoomExists(ctx context.Context, roomID string) bool {
	return h.lookup(ctx, roomID) != nil
}

func (h *Hub) Get(ctx context.Context, roomID string) (store.Snapshot, error) {
	rec := h.lookup(ctx, roomID)
	if rec == nil {
		return store.Snapshot{}, store.ErrRoomNotFound
	}
	reply := make(chan store.Snapshot, 1)
	if !rec.Send(ctx, record.Get{Reply: reply}) {
		return store.Snapshot{}, store.ErrRoomNotFound
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-rec.Done():
		// the record may have answered just before it stopped
		select {
		case snap := <-reply:
			return snap, nil
		default:
			return store.Snapshot{}, store.ErrRoomNotFound
		}
	case <-ctx.Done():
		return store.Snapshot{}, ctx.Err()
	}
}

func (h *Hub) Patch(ctx context.Context, roomID string, p store.Patch) {
	if rec := h.lookup(ctx, roomID); rec != nil {
		rec.Send(ctx, record.Write{Patch: p, Version: -1})
	}
}

func (h *Hub) PatchIfVersion(ctx context.Context, roomID string, version int, p store.Patch) error {
	rec := h.lookup(ctx, roomID)
	if rec == nil {
		return store.ErrRoomNotFound
	}
	reply := make(chan error, 1)
	if !rec.Send(ctx, record.Write{Patch: p, Version: version, Reply: reply}) {
		return store.ErrRoomNotFound
	}
	select {
	case err := <-reply:
		return err
	case <-rec.Done():
		select {
		case err := <-reply:
			return err
		default:
			return store.ErrRoomNotFound
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeleteRoom closes a room; its subscribers observe a nil snapshot.
func (h *Hub) DeleteRoom(ctx context.Context, roomID string) error {
	if !h.send(ctx, RemoveRoom{Code: roomID}) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, roomID string, onChange func(store.Snapshot)) func() {
	rec := h.lookup(ctx, roomID)
	if rec == nil {
		go onChange(store.Snapshot{})
		return func() {}
	}

	subCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	out := make(chan store.Snapshot, 1)
	if !rec.Send(subCtx, record.Subscribe{ID: id, Outbox: out}) {
		cancel()
		go onChange(store.Snapshot{})
		return func() {}
	}

	go func() {
		for snap := range out {
			if subCtx.Err() != nil {
				continue
			}
			onChange(snap)
		}
		// Closed by the record: either we unsubscribed or the room is gone.
		if subCtx.Err() == nil {
			onChange(store.Snapshot{})
			cancel()
		}
	}()

	go func() {
		<-subCtx.Done()
		rec.Send(context.Background(), record.Unsubscribe{ID: id})
	}()

	return cancel
}
