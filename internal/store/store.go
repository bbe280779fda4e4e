// Package store is the typed accessor over the shared room record: create, patch and
// subscribe. Implementations live in hub (in memory), pgstore (PostgreSQL) and remote
// (the relay's HTTP surface).
package store

import (
	"context"
	"errors"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomExists      = errors.New("room already exists")
	ErrVersionConflict = errors.New("room version conflict")
)

// Snapshot is a full record as observed by a subscriber. Room is nil when the record was
// deleted or never created.
type Snapshot struct {
	Version int
	Room    *engine.Room
}

func (s Snapshot) Closed() bool { return s.Room == nil }

type Store interface {
	// CreateRoom reports false on any failure instead of returning it.
	CreateRoom(ctx context.Context, room engine.Room) bool
	RoomExists(ctx context.Context, roomID string) bool
	Get(ctx context.Context, roomID string) (Snapshot, error)
	// Patch merges top-level fields, fire-and-forget. A missing record is a no-op.
	Patch(ctx context.Context, roomID string, p Patch)
	// PatchIfVersion merges p only if the record is still at version.
	PatchIfVersion(ctx context.Context, roomID string, version int, p Patch) error
	// Subscribe delivers the current record, then every change, until unsubscribe.
	Subscribe(ctx context.Context, roomID string, onChange func(Snapshot)) (unsubscribe func())
}

var ErrInvalidPatch = errors.New("patch does not produce a valid room record")
