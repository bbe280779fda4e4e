// Package record holds one room's stored document behind a single goroutine. Every write
// is serialized through its inbox, which is what makes conditional writes atomic.
package record

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/partybox-charades/internal/store"
)

type Msg interface{ isRecordMsg() }

type Subscribe struct {
	ID     string
	Outbox chan store.Snapshot // buffered; receives the current snapshot immediately
}

func (Subscribe) isRecordMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isRecordMsg() {}

// Write merges Patch into the document. Version < 0 writes unconditionally.
type Write struct {
	Patch   store.Patch
	Version int
	Reply   chan error // may be nil for fire-and-forget
}

func (Write) isRecordMsg() {}

type Get struct {
	Reply chan store.Snapshot
}

func (Get) isRecordMsg() {}

type Shutdown struct{}

func (Shutdown) isRecordMsg() {}

type Record struct {
	code        string
	inbox       chan Msg
	doc         []byte
	version     int
	subscribers map[string]chan store.Snapshot
	touched     atomic.Int64
	subCount    atomic.Int32
	log         *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(parent context.Context, code string, doc []byte, log *zap.Logger) *Record {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	r := &Record{
		code:        code,
		inbox:       make(chan Msg, 64),
		doc:         doc,
		subscribers: make(map[string]chan store.Snapshot),
		log:         log.With(zap.String("room", code)),
		ctx:         ctx,
		cancel:      cancel,
	}
	r.touched.Store(time.Now().UnixNano())

	go r.loop()
	return r
}

func (r *Record) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Subscribe:
				r.subscribers[msg.ID] = msg.Outbox
				r.subCount.Store(int32(len(r.subscribers)))
				offer(msg.Outbox, r.snapshot())

			case Unsubscribe:
				if ch, ok := r.subscribers[msg.ID]; ok {
					close(ch)
					delete(r.subscribers, msg.ID)
					r.subCount.Store(int32(len(r.subscribers)))
				}

			case Write:
				err := r.write(msg)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Get:
				msg.Reply <- r.snapshot()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Record) write(msg Write) error {
	if msg.Version >= 0 && msg.Version != r.version {
		return store.ErrVersionConflict
	}

	merged, err := store.Merge(r.doc, msg.Patch)
	if err != nil {
		r.log.Warn("rejecting patch", zap.Error(err))
		return store.ErrInvalidPatch
	}
	if _, err := store.Decode(merged); err != nil {
		r.log.Warn("rejecting patch", zap.Error(err))
		return store.ErrInvalidPatch
	}

	r.doc = merged
	r.version++
	r.touched.Store(time.Now().UnixNano())
	r.log.Debug("record written", zap.Int("version", r.version), zap.Strings("fields", msg.Patch.Fields()))
	r.broadcast(r.snapshot())
	return nil
}

func (r *Record) snapshot() store.Snapshot {
	room, err := store.Decode(r.doc)
	if err != nil {
		return store.Snapshot{Version: r.version}
	}
	return store.Snapshot{Version: r.version, Room: room}
}

func (r *Record) broadcast(snap store.Snapshot) {
	for _, ch := range r.subscribers {
		s := snap
		if snap.Room != nil {
			room := snap.Room.Clone()
			s.Room = &room
		}
		offer(ch, s)
	}
}

// offer never blocks the record: a slow subscriber loses the stale snapshot it has not read
// yet, never the newest one. Snapshots are full records, so nothing else is lost.
func offer(ch chan store.Snapshot, snap store.Snapshot) {
	if cap(ch) == 0 {
		select {
		case ch <- snap:
		default:
		}
		return
	}
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (r *Record) shutdown() {
	for id, ch := range r.subscribers {
		close(ch) // subscribers observe the room as closed
		delete(r.subscribers, id)
	}
	r.subCount.Store(0)
	r.cancel()
}

// Send delivers m unless the record or ctx is already done.
func (r *Record) Send(ctx context.Context, m Msg) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *Record) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Record) Code() string { return r.code }

// Idle reports how long the record has gone without writes, and whether anyone is watching.
func (r *Record) Idle(now time.Time) (time.Duration, bool) {
	last := time.Unix(0, r.touched.Load())
	return now.Sub(last), r.subCount.Load() > 0
}
