package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/partybox-charades/internal/engine"
)

const MaxUpdateAttempts = 5

var ErrTooManyConflicts = errors.New("room kept changing under update")

// Update runs fn against the latest record and writes back only the changed fields,
// conditional on the version it read. On a conflict it re-reads and runs fn again, so two
// devices racing for the same transition are serialized: the loser sees the winner's state.
// An error from fn aborts without writing.
func Update(ctx context.Context, s Store, roomID string, fn func(engine.Room) (engine.Room, error)) (engine.Room, error) {
	for attempt := 0; attempt < MaxUpdateAttempts; attempt++ {
		snap, err := s.Get(ctx, roomID)
		if err != nil {
			return engine.Room{}, err
		}
		if snap.Room == nil {
			return engine.Room{}, ErrRoomNotFound
		}

		next, err := fn(snap.Room.Clone())
		if err != nil {
			return *snap.Room, err
		}
		p, err := Diff(*snap.Room, next)
		if err != nil {
			return *snap.Room, err
		}
		if len(p) == 0 {
			return next, nil
		}

		err = s.PatchIfVersion(ctx, roomID, snap.Version, p)
		switch {
		case err == nil:
			return next, nil
		case errors.Is(err, ErrVersionConflict):
			continue
		default:
			return *snap.Room, err
		}
	}
	return engine.Room{}, fmt.Errorf("%w: %s", ErrTooManyConflicts, roomID)
}
